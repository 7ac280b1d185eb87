// Package merge reassembles paragraphs that a physical page boundary split
// across two or more pages. It runs strictly single-threaded over the
// ordered correction output: a single forward pass holding at most one
// pending open paragraph, so only boundary-adjacent sections ever fuse and
// section order is never changed.
package merge

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/jackzampolin/bindery/internal/book"
)

// Options controls the join heuristics. The punctuation and quote sets are
// configurable because real books vary (typographic quotes, ellipses);
// tune against sample scans rather than trusting the defaults blindly.
type Options struct {
	// TerminalPunctuation are runes that end a sentence.
	TerminalPunctuation string

	// ClosingQuotes may trail terminal punctuation and still count as a
	// sentence end.
	ClosingQuotes string

	Logger *slog.Logger
}

// DefaultOptions returns the heuristics used when none are supplied.
func DefaultOptions() Options {
	return Options{
		TerminalPunctuation: ".!?",
		ClosingQuotes:       `"'”’`,
	}
}

// Merger fuses cross-page paragraph fragments.
type Merger struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Merger. Zero-value option fields get defaults.
func New(opts Options) *Merger {
	def := DefaultOptions()
	if opts.TerminalPunctuation == "" {
		opts.TerminalPunctuation = def.TerminalPunctuation
	}
	if opts.ClosingQuotes == "" {
		opts.ClosingQuotes = def.ClosingQuotes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{opts: opts, logger: logger.With("stage", "merge")}
}

// Merge runs the single forward pass over pages in index order and returns
// the fused section stream. Only the first section of a page is ever
// evaluated against the pending paragraph; interior sections pass through
// untouched. The output is one logical unit with no page boundaries left,
// so merging it again is a no-op.
func (m *Merger) Merge(pages [][]book.ContentSection) []book.ContentSection {
	var out []book.ContentSection
	var pending *book.ContentSection

	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
	}

	for _, sections := range pages {
		if len(sections) == 0 {
			continue
		}

		i := 0
		if pending != nil {
			first := sections[0]
			if m.eligible(first.Type) && m.shouldJoin(pending.Content, first.Content) {
				pending.Content = joinSeam(pending.Content, first.Content)
				i = 1
			} else {
				flush()
			}
		}

		rest := sections[i:]
		if len(rest) == 0 {
			// Whole page merged into the pending paragraph; the chain may
			// extend across the next boundary.
			continue
		}

		// The pending slot only survives a boundary; anything after the
		// page's first section terminates it.
		flush()

		for _, sec := range rest[:len(rest)-1] {
			out = append(out, sec)
		}

		last := rest[len(rest)-1]
		if m.eligible(last.Type) {
			pending = &last
		} else {
			out = append(out, last)
		}
	}

	flush()
	return out
}

// eligible reports whether a section type can take part in a join. Any
// other type is a hard stop.
func (m *Merger) eligible(t book.SectionType) bool {
	return t == book.SectionParagraph || t == book.SectionBlockIndent
}

// shouldJoin decides whether a pending paragraph continues into the next
// page's first section: the pending text must not end a sentence, the
// candidate must not read as a fresh one (leading capital letter), and the
// seam must not duplicate terminal punctuation. When all three signals are
// absent the texts are joined.
func (m *Merger) shouldJoin(pending, candidate string) bool {
	if endsSentence(pending, m.opts.TerminalPunctuation, m.opts.ClosingQuotes) {
		return false
	}
	if startsWithTerminal(candidate, m.opts.TerminalPunctuation) {
		return false
	}
	return !startsSentence(candidate)
}

// endsSentence reports whether s ends in terminal punctuation, optionally
// followed by a closing quote.
func endsSentence(s, terminal, quotes string) bool {
	runes := []rune(strings.TrimRightFunc(s, unicode.IsSpace))
	if len(runes) == 0 {
		return false
	}

	last := runes[len(runes)-1]
	if strings.ContainsRune(quotes, last) {
		if len(runes) < 2 {
			return false
		}
		last = runes[len(runes)-2]
	}
	return strings.ContainsRune(terminal, last)
}

// startsWithTerminal reports whether s begins, after whitespace, with a
// rune from the terminal set. Joining such a candidate would put stray
// sentence-ending punctuation in the middle of the fused paragraph.
func startsWithTerminal(s, terminal string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		return strings.ContainsRune(terminal, r)
	}
	return false
}

// startsSentence reports whether s begins, after whitespace, with an
// uppercase letter.
func startsSentence(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsUpper(r)
	}
	return false
}

// joinSeam concatenates two fragments with exactly one space, collapsing
// whatever whitespace sat at the boundary.
func joinSeam(a, b string) string {
	return strings.TrimRightFunc(a, unicode.IsSpace) + " " + strings.TrimLeftFunc(b, unicode.IsSpace)
}
