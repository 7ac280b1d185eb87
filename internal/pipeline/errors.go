package pipeline

import "errors"

var (
	// ErrSetup marks fatal configuration problems found before any page is
	// dispatched: no pages supplied, missing client or credentials. Only
	// setup errors abort a run; per-page failures are absorbed.
	ErrSetup = errors.New("pipeline setup error")

	// ErrCancelled is returned when the run was cancelled. Pages completed
	// before the signal are preserved and returned alongside it.
	ErrCancelled = errors.New("pipeline cancelled")
)
