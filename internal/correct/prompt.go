package correct

import (
	_ "embed"
)

//go:embed system.tmpl
var correctionPrompt string

// CorrectionPrompt returns the prompt that instructs the model to turn raw
// OCR text (plus the page image) into a typed section array.
func CorrectionPrompt() string {
	return correctionPrompt
}
