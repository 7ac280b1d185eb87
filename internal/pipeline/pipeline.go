// Package pipeline wires the correction and merge stages into a single
// library call: pages in, assembled book out. The caller owns all external
// configuration (endpoint, credentials, worker count) and observes the run
// through the Hooks callback surface; no UI framework leaks in here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/bindery/internal/book"
	"github.com/jackzampolin/bindery/internal/correct"
	"github.com/jackzampolin/bindery/internal/merge"
	"github.com/jackzampolin/bindery/internal/pagesource"
	"github.com/jackzampolin/bindery/internal/providers"
)

// State is the pipeline lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateCorrecting State = "correcting"
	StateMerging    State = "merging"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// Hooks is the callback surface exposed to the caller. All fields are
// optional. Callbacks are invoked synchronously from pipeline goroutines;
// keep them fast.
type Hooks struct {
	// OnProgress fires in completion order with the number of pages done.
	OnProgress func(completed int, status string)

	// OnLog receives human-readable log lines, including every recovered
	// per-page error with its page index.
	OnLog func(message string)

	// OnComplete fires exactly once at the end of a run. On cancellation
	// partial carries whatever completed before the signal.
	OnComplete func(success bool, message string, partial *book.Book)
}

// Config configures a pipeline run.
type Config struct {
	Source pagesource.Source
	Client providers.CompletionClient

	// Model passed to the completion endpoint (client default if empty)
	Model string

	// Workers bounds concurrent correction calls (default 4).
	Workers int

	// RPS caps the request rate across all workers; 0 disables.
	RPS float64

	// Limiter, when set, is used instead of one built from RPS. Sharing a
	// limiter lets the caller retune the rate while a run is in flight.
	Limiter *providers.RateLimiter

	// MaxTokens per correction completion.
	MaxTokens int

	// Grace bounds how long in-flight calls may finish after cancellation.
	Grace time.Duration

	Merge  merge.Options
	Hooks  Hooks
	Logger *slog.Logger
}

// Summary reports per-page outcomes for a finished run.
type Summary struct {
	Pages     int `json:"pages"`
	Succeeded int `json:"succeeded"`
	Degraded  int `json:"degraded"` // Fell back to raw OCR text
	Failed    int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d pages: %d succeeded, %d degraded, %d failed",
		s.Pages, s.Succeeded, s.Degraded, s.Failed)
}

// Pipeline runs the correction and merge stages over a page source.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	summary Summary
}

// New validates the configuration and creates a pipeline. Missing client
// or source is a setup error; everything else has defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: no completion client", ErrSetup)
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: no page source", ErrSetup)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger.With("component", "pipeline"),
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Summary returns per-page outcome counts for the last run.
func (p *Pipeline) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) log(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.logger.Info(msg)
	if p.cfg.Hooks.OnLog != nil {
		p.cfg.Hooks.OnLog(msg)
	}
}

// Run executes the full pipeline: correct every page under the bounded
// worker pool, merge the ordered section stream, and assemble the book.
// Per-page failures are absorbed (their raw text is preserved); only setup
// errors fail the run. Cancellation returns the partial book built from
// pages completed before the signal, in page order, with ErrCancelled.
func (p *Pipeline) Run(ctx context.Context) (*book.Book, error) {
	pages, err := p.cfg.Source.Pages(ctx)
	if err != nil {
		p.setState(StateFailed)
		return p.finish(nil, fmt.Errorf("%w: failed to load pages: %v", ErrSetup, err))
	}
	if len(pages) == 0 {
		p.setState(StateFailed)
		return p.finish(nil, fmt.Errorf("%w: no pages supplied", ErrSetup))
	}
	for i, page := range pages {
		if page.Index != i {
			p.setState(StateFailed)
			return p.finish(nil, fmt.Errorf("%w: page indices must be contiguous from 0, got %d at position %d", ErrSetup, page.Index, i))
		}
	}

	limiter := p.cfg.Limiter
	if limiter == nil {
		limiter = providers.NewRateLimiter(p.cfg.RPS)
	}
	stage, err := correct.NewStage(correct.StageConfig{
		Client:    p.cfg.Client,
		Logger:    p.logger,
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Limiter:   limiter,
	})
	if err != nil {
		p.setState(StateFailed)
		return p.finish(nil, fmt.Errorf("%w: %v", ErrSetup, err))
	}

	p.setState(StateCorrecting)
	p.log("correcting %d pages with %d workers", len(pages), p.cfg.Workers)

	sched := newScheduler(stage, p.cfg.Workers, p.cfg.Grace, p.logger, func(completed int, res correct.Result) {
		if res.Err != nil {
			p.log("page %d: %v", res.PageIndex, res.Err)
		}
		if p.cfg.Hooks.OnProgress != nil {
			p.cfg.Hooks.OnProgress(completed, fmt.Sprintf("corrected page %d (%d/%d)", res.PageIndex, completed, len(pages)))
		}
	})

	results, runErr := sched.run(ctx, pages)
	cancelled := errors.Is(runErr, ErrCancelled)
	if runErr != nil && !cancelled {
		p.setState(StateFailed)
		return p.finish(nil, runErr)
	}

	summary := Summary{Pages: len(pages)}
	for _, res := range results {
		switch {
		case res.Err == nil:
			summary.Succeeded++
		case res.Degraded():
			summary.Degraded++
		default:
			summary.Failed++
		}
	}
	p.mu.Lock()
	p.summary = summary
	p.mu.Unlock()

	p.setState(StateMerging)
	p.log("merging %d page results", len(results))

	pageSections := make([][]book.ContentSection, 0, len(results))
	for _, res := range results {
		pageSections = append(pageSections, res.Sections)
	}
	merged := merge.New(p.cfg.Merge).Merge(pageSections)
	assembled := book.Assemble(merged)

	p.log("run summary: %s", summary)

	if cancelled {
		p.setState(StateCancelled)
		b, _ := p.finish(assembled, runErr)
		return b, runErr
	}

	p.setState(StateCompleted)
	return p.finish(assembled, nil)
}

// finish fires OnComplete exactly once per run and passes results through.
func (p *Pipeline) finish(b *book.Book, err error) (*book.Book, error) {
	if p.cfg.Hooks.OnComplete != nil {
		if err != nil {
			p.cfg.Hooks.OnComplete(false, err.Error(), b)
		} else {
			p.cfg.Hooks.OnComplete(true, p.Summary().String(), b)
		}
	}
	return b, err
}
