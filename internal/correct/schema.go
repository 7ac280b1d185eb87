package correct

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// sectionsSchemaJSON is the canonical schema for the model's section array.
// Parsed output is validated against it before being accepted; anything
// else goes through the repair/fallback path.
const sectionsSchemaJSON = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"type": {
				"type": "string",
				"enum": [
					"title", "author", "cover", "chapter_header", "header",
					"sub_header", "paragraph", "bold", "block_indent",
					"image", "page_division"
				]
			},
			"content": {"type": "string"},
			"image": {"type": "string"},
			"caption": {"type": "string"}
		},
		"required": ["type"]
	}
}`

var sectionsSchema = jsonschema.MustCompileString("sections.json", sectionsSchemaJSON)

// validateSections checks a decoded section array against the canonical
// schema.
func validateSections(doc any) error {
	return sectionsSchema.Validate(doc)
}

// schemaErrorSummary flattens a validation error into a single line for
// the repair prompt and logs.
func schemaErrorSummary(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
