package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/bindery/internal/book"
	"github.com/jackzampolin/bindery/internal/pagesource"
	"github.com/jackzampolin/bindery/internal/providers"
)

// stubSource serves a fixed page slice.
type stubSource struct {
	pages []pagesource.Page
	err   error
}

func (s *stubSource) Pages(ctx context.Context) ([]pagesource.Page, error) {
	return s.pages, s.err
}

// makePages builds n pages whose raw text identifies them.
func makePages(n int) []pagesource.Page {
	pages := make([]pagesource.Page, n)
	for i := range pages {
		// Terminal punctuation keeps fallback paragraphs from fusing in
		// the merge stage, so failure tests see one section per page.
		pages[i] = pagesource.Page{
			Index:   i,
			RawText: fmt.Sprintf("Raw text of page-%03d.", i),
			Status:  pagesource.StatusPending,
		}
	}
	return pages
}

// echoClient answers each correction with a single terminal paragraph
// naming the page, after a per-request latency drawn from jitter.
func echoClient(jitter time.Duration) *providers.MockClient {
	client := providers.NewMockClient()
	client.Latency = 0
	client.RespondFunc = func(req *providers.ChatRequest) (string, error) {
		if jitter > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(jitter))))
		}
		content := req.Messages[0].Content
		idx := strings.Index(content, "page-")
		name := content[idx : idx+8]
		return fmt.Sprintf(`[{"type":"paragraph","content":"Text of %s."}]`, name), nil
	}
	return client
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestPipeline_OrderedOutputUnderRandomLatency(t *testing.T) {
	const n = 24
	client := echoClient(10 * time.Millisecond)

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(n)},
		Client:  client,
		Workers: 8,
	})

	b, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.State() != StateCompleted {
		t.Errorf("State = %s, want completed", p.State())
	}

	// No chapter headers: everything lands in front matter, in page order.
	if len(b.FrontMatter) != n {
		t.Fatalf("sections = %d, want %d", len(b.FrontMatter), n)
	}
	for i, sec := range b.FrontMatter {
		want := fmt.Sprintf("Text of page-%03d.", i)
		if sec.Content != want {
			t.Errorf("section %d = %q, want %q (completion order leaked)", i, sec.Content, want)
		}
	}
}

func TestPipeline_WorkerLimitRespected(t *testing.T) {
	client := echoClient(0)
	client.Latency = 5 * time.Millisecond

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(20)},
		Client:  client,
		Workers: 3,
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if max := client.MaxConcurrent(); max > 3 {
		t.Errorf("MaxConcurrent = %d, want <= 3", max)
	}
}

func TestPipeline_ProgressFiresInCompletionOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		counts []int
	)

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(10)},
		Client:  echoClient(5 * time.Millisecond),
		Workers: 4,
		Hooks: Hooks{
			OnProgress: func(completed int, status string) {
				mu.Lock()
				counts = append(counts, completed)
				mu.Unlock()
			},
		},
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != 10 {
		t.Fatalf("progress calls = %d, want 10", len(counts))
	}
	for i, c := range counts {
		if c != i+1 {
			t.Errorf("completed counts not monotonic: %v", counts)
			break
		}
	}
}

func TestPipeline_SetupErrors(t *testing.T) {
	t.Run("no client", func(t *testing.T) {
		_, err := New(Config{Source: &stubSource{}})
		if !errors.Is(err, ErrSetup) {
			t.Errorf("error = %v, want ErrSetup", err)
		}
	})

	t.Run("no source", func(t *testing.T) {
		_, err := New(Config{Client: providers.NewMockClient()})
		if !errors.Is(err, ErrSetup) {
			t.Errorf("error = %v, want ErrSetup", err)
		}
	})

	t.Run("no pages", func(t *testing.T) {
		p := newTestPipeline(t, Config{
			Source: &stubSource{},
			Client: providers.NewMockClient(),
		})
		_, err := p.Run(context.Background())
		if !errors.Is(err, ErrSetup) {
			t.Errorf("Run() error = %v, want ErrSetup", err)
		}
		if p.State() != StateFailed {
			t.Errorf("State = %s, want failed", p.State())
		}
	})

	t.Run("non-contiguous indices", func(t *testing.T) {
		pages := makePages(3)
		pages[2].Index = 9
		p := newTestPipeline(t, Config{
			Source: &stubSource{pages: pages},
			Client: providers.NewMockClient(),
		})
		if _, err := p.Run(context.Background()); !errors.Is(err, ErrSetup) {
			t.Errorf("Run() error = %v, want ErrSetup", err)
		}
	})
}

func TestPipeline_PerPageFailuresAbsorbed(t *testing.T) {
	// Every call fails; every page still contributes its raw text.
	client := providers.NewMockClient()
	client.ShouldFail = true

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(5)},
		Client:  client,
		Workers: 2,
	})

	b, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, per-page failures must not fail the run", err)
	}
	if p.State() != StateCompleted {
		t.Errorf("State = %s, want completed", p.State())
	}

	sum := p.Summary()
	if sum.Failed != 5 || sum.Succeeded != 0 {
		t.Errorf("Summary = %+v, want 5 failed", sum)
	}

	var all []book.ContentSection
	all = append(all, b.FrontMatter...)
	for _, ch := range b.Chapters {
		all = append(all, ch.Sections...)
	}
	for i, sec := range all {
		if !strings.Contains(sec.Content, fmt.Sprintf("page-%03d", i)) {
			t.Errorf("section %d = %q, raw text not preserved", i, sec.Content)
		}
	}
}

func TestPipeline_CancelReturnsPartialInOrder(t *testing.T) {
	const n = 12
	client := echoClient(0)
	client.Latency = 30 * time.Millisecond

	var onceDone sync.WaitGroup
	onceDone.Add(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(n)},
		Client:  client,
		Workers: 2,
		Grace:   5 * time.Second,
		Hooks: Hooks{
			OnProgress: func(completed int, status string) {
				if completed <= 2 {
					onceDone.Done()
				}
			},
		},
	})

	go func() {
		onceDone.Wait()
		cancel()
	}()

	b, err := p.Run(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if p.State() != StateCancelled {
		t.Errorf("State = %s, want cancelled", p.State())
	}
	if b == nil {
		t.Fatal("partial book is nil")
	}

	got := len(b.FrontMatter)
	if got < 2 || got >= n {
		t.Fatalf("partial sections = %d, want at least 2 and fewer than %d", got, n)
	}

	// Whatever completed must appear in ascending page order.
	last := -1
	for _, sec := range b.FrontMatter {
		var idx int
		if _, err := fmt.Sscanf(sec.Content, "Text of page-%03d.", &idx); err != nil {
			t.Fatalf("unexpected section content %q", sec.Content)
		}
		if idx <= last {
			t.Errorf("sections out of order: %d after %d", idx, last)
		}
		last = idx
	}

	// No page should have been dispatched after the signal.
	if client.RequestCount() == n {
		t.Error("all pages dispatched despite cancellation")
	}
}

func TestPipeline_OnCompleteFires(t *testing.T) {
	var (
		gotSuccess bool
		gotMsg     string
		calls      int
	)

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(3)},
		Client:  echoClient(0),
		Workers: 2,
		Hooks: Hooks{
			OnComplete: func(success bool, message string, partial *book.Book) {
				calls++
				gotSuccess = success
				gotMsg = message
			},
		},
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("OnComplete calls = %d, want 1", calls)
	}
	if !gotSuccess {
		t.Error("OnComplete success = false")
	}
	if !strings.Contains(gotMsg, "3 succeeded") {
		t.Errorf("OnComplete message = %q", gotMsg)
	}
}

func TestPipeline_DegradedCountedInSummary(t *testing.T) {
	client := providers.NewMockClient()
	calls := 0
	var mu sync.Mutex
	client.RespondFunc = func(req *providers.ChatRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		// Page content that never parses, including its repair turn.
		return "not json at all", nil
	}

	p := newTestPipeline(t, Config{
		Source:  &stubSource{pages: makePages(2)},
		Client:  client,
		Workers: 1,
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sum := p.Summary()
	if sum.Degraded != 2 {
		t.Errorf("Summary = %+v, want 2 degraded", sum)
	}
}
