// Package correct implements the per-page correction stage: it sends a
// page's raw OCR text (and image, when available) to the completion
// endpoint and turns the reply into typed content sections. Pages whose
// output cannot be parsed degrade to a raw-text fallback paragraph rather
// than being dropped.
package correct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/bindery/internal/book"
	"github.com/jackzampolin/bindery/internal/pagesource"
	"github.com/jackzampolin/bindery/internal/providers"
)

// Result is the outcome of correcting one page. Err is non-nil when the
// page failed or degraded; Sections always carries usable content (the
// fallback paragraph in the degraded case) unless the page was empty.
type Result struct {
	PageIndex int
	Sections  []book.ContentSection
	Err       error
}

// Degraded reports whether the result fell back to raw OCR text.
func (r Result) Degraded() bool {
	var mErr *MalformedResponseError
	return errors.As(r.Err, &mErr)
}

// StageConfig configures a correction stage.
type StageConfig struct {
	Client providers.CompletionClient
	Logger *slog.Logger

	// Model passed through to the endpoint (client default if empty)
	Model string

	// MaxTokens for the completion (default 20000, sized for dense pages)
	MaxTokens int

	// Limiter is shared across workers; nil disables rate limiting.
	Limiter *providers.RateLimiter

	// DisableRepair skips the one-shot repair turn on parse failure.
	DisableRepair bool
}

// Stage corrects pages. Safe for concurrent use.
type Stage struct {
	client        providers.CompletionClient
	logger        *slog.Logger
	model         string
	maxTokens     int
	limiter       *providers.RateLimiter
	disableRepair bool
}

// NewStage creates a correction stage.
func NewStage(cfg StageConfig) (*Stage, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("must provide a completion client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 20000
	}
	return &Stage{
		client:        cfg.Client,
		logger:        logger.With("stage", "correct"),
		model:         cfg.Model,
		maxTokens:     maxTokens,
		limiter:       cfg.Limiter,
		disableRepair: cfg.DisableRepair,
	}, nil
}

// Correct processes one page. Empty pages short-circuit to an empty result
// without a network call. Parse failures get one salvage pass, then one
// repair turn, then fall back to a single raw-text paragraph marked with a
// MalformedResponseError. Call failures (exhausted retries, auth) also
// fall back so no content is ever silently lost.
func (s *Stage) Correct(ctx context.Context, page pagesource.Page) Result {
	result := Result{PageIndex: page.Index}

	if page.RawText == "" {
		s.logger.Debug("skipping empty page", "page", page.Index)
		return result
	}

	if err := s.limiter.Wait(ctx); err != nil {
		result.Err = fmt.Errorf("page %d: rate limit wait: %w", page.Index, err)
		result.Sections = s.fallbackSections(page)
		return result
	}

	req := s.buildRequest(page)
	chatResult, err := s.client.Chat(ctx, req)
	if err != nil {
		result.Err = fmt.Errorf("page %d: correction call failed: %w", page.Index, err)
		result.Sections = s.fallbackSections(page)
		return result
	}

	sections, parseErr := parseSections(chatResult.Content)
	if parseErr != nil && !s.disableRepair {
		sections, parseErr = s.repair(ctx, req, chatResult.Content, parseErr)
	}
	if parseErr != nil {
		result.Err = &MalformedResponseError{PageIndex: page.Index, Cause: parseErr}
		result.Sections = s.fallbackSections(page)
		s.logger.Warn("model output unusable, falling back to raw text",
			"page", page.Index, "error", parseErr)
		return result
	}

	for i := range sections {
		idx := page.Index
		sections[i].Source = &idx
	}
	result.Sections = sections

	s.logger.Debug("page corrected",
		"page", page.Index, "sections", len(sections), "tokens", chatResult.TotalTokens)
	return result
}

// buildRequest embeds the raw OCR text after the fixed prompt, attaching
// the page image for vision-capable endpoints.
func (s *Stage) buildRequest(page pagesource.Page) *providers.ChatRequest {
	msg := providers.Message{
		Role:    "user",
		Content: CorrectionPrompt() + "\n\n# OCR CONTENT\n\n" + page.RawText,
	}
	if len(page.Image) > 0 {
		msg.Images = [][]byte{page.Image}
	}
	return &providers.ChatRequest{
		Messages:  []providers.Message{msg},
		Model:     s.model,
		MaxTokens: s.maxTokens,
	}
}

// repair sends one follow-up turn carrying the failed output and the parse
// error, then reparses. Bounded to a single attempt.
func (s *Stage) repair(ctx context.Context, req *providers.ChatRequest, failed string, parseErr error) ([]book.ContentSection, error) {
	repairReq := &providers.ChatRequest{
		Messages:  append([]providers.Message{}, req.Messages...),
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}
	repairReq.Messages = append(repairReq.Messages,
		providers.Message{Role: "assistant", Content: failed},
		providers.Message{
			Role: "user",
			Content: fmt.Sprintf("There was an error parsing your JSON, %v. "+
				"Ensure that you've properly escaped your JSON strings.", parseErr),
		},
	)

	chatResult, err := s.client.Chat(ctx, repairReq)
	if err != nil {
		return nil, parseErr
	}
	sections, err := parseSections(chatResult.Content)
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// fallbackSections wraps the page's raw OCR text in a single paragraph so
// downstream merge and assembly still see the content.
func (s *Stage) fallbackSections(page pagesource.Page) []book.ContentSection {
	idx := page.Index
	sec := book.Paragraph(page.RawText)
	sec.Source = &idx
	return []book.ContentSection{sec}
}
