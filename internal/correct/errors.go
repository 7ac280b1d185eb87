package correct

import "fmt"

// MalformedResponseError records that a page's model output could not be
// parsed as a section array even after salvage and repair, and that the
// page was degraded to a raw-text fallback paragraph. It is logged, never
// fatal.
type MalformedResponseError struct {
	PageIndex int
	Cause     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("page %d: malformed model response: %v", e.PageIndex, e.Cause)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}
