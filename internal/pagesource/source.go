// Package pagesource supplies ordered pages to the pipeline. A page pairs
// raw OCR text with its captured image; the OCR engine itself is an
// external tool whose output is consumed as-is.
package pagesource

import "context"

// Status tracks a page through the correction stage.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// Page is one captured book page. Index is unique and contiguous from 0;
// it is assigned at ingestion and never changes.
type Page struct {
	Index    int
	ImageRef string // Opaque reference (file path for DirSource), diagnostics only
	Image    []byte // Page image bytes; nil when no image is available
	RawText  string // Raw OCR text; may be empty
	Status   Status
}

// Source supplies an ordered collection of pages.
type Source interface {
	// Pages returns all pages ordered by index 0..N-1.
	Pages(ctx context.Context) ([]Page, error)
}
