package correct

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/bindery/internal/book"
)

// parseSections parses model output into a section array, with lightweight
// recovery for markdown code fences and surrounding text. Models sometimes
// wrap the array in an object ({"content": [...]}) or return a single bare
// object; both are normalized.
func parseSections(content string) ([]book.ContentSection, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	var lastErr error
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		sections, err := decodeSections(candidate)
		if err == nil {
			return sections, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// decodeSections decodes one candidate string into validated sections.
func decodeSections(candidate string) ([]book.ContentSection, error) {
	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	// Unwrap {"content": [...]} and lift bare objects into an array.
	switch v := doc.(type) {
	case map[string]any:
		if inner, ok := v["content"].([]any); ok {
			doc = inner
		} else {
			doc = []any{v}
		}
	case []any:
		// Already an array.
	default:
		return nil, fmt.Errorf("expected a JSON array, got %T", doc)
	}

	if err := validateSections(doc); err != nil {
		return nil, fmt.Errorf("section array failed validation: %s", schemaErrorSummary(err))
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize sections: %w", err)
	}

	var raw []struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Image   string `json:"image"`
		Caption string `json:"caption"`
	}
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode sections: %w", err)
	}

	sections := make([]book.ContentSection, 0, len(raw))
	for _, r := range raw {
		sections = append(sections, book.ContentSection{
			Type:    book.ParseSectionType(r.Type),
			Content: r.Content,
			Image:   r.Image,
			Caption: r.Caption,
		})
	}
	return sections, nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if arrayStart < objectStart {
			start = arrayStart
			closeChar = "]"
		} else {
			start = objectStart
			closeChar = "}"
		}
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
