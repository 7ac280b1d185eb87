// Package book provides the content data model shared across the pipeline:
// typed content sections, chapters, and the assembled book representation.
// This package has no dependencies on other bindery packages to avoid
// import cycles.
package book

import (
	"fmt"
	"strings"
)

// SectionType classifies a fragment of book content.
type SectionType string

const (
	SectionTitle         SectionType = "title"
	SectionAuthor        SectionType = "author"
	SectionCover         SectionType = "cover"
	SectionChapterHeader SectionType = "chapter_header"
	SectionHeader        SectionType = "header"
	SectionSubHeader     SectionType = "sub_header"
	SectionParagraph     SectionType = "paragraph"
	SectionBold          SectionType = "bold"
	SectionBlockIndent   SectionType = "block_indent"
	SectionImage         SectionType = "image"
	SectionPageDivision  SectionType = "page_division"
)

// sectionTypes is the set of recognized section types.
var sectionTypes = map[SectionType]bool{
	SectionTitle:         true,
	SectionAuthor:        true,
	SectionCover:         true,
	SectionChapterHeader: true,
	SectionHeader:        true,
	SectionSubHeader:     true,
	SectionParagraph:     true,
	SectionBold:          true,
	SectionBlockIndent:   true,
	SectionImage:         true,
	SectionPageDivision:  true,
}

// ParseSectionType converts a string to a SectionType.
// Unknown strings fall back to paragraph so content is never dropped.
func ParseSectionType(s string) SectionType {
	st := SectionType(strings.ToLower(strings.TrimSpace(s)))
	if sectionTypes[st] {
		return st
	}
	return SectionParagraph
}

// Valid reports whether t is a recognized section type.
func (t SectionType) Valid() bool {
	return sectionTypes[t]
}

// ContentSection is a typed fragment of book content produced by the
// correction stage. Source carries the zero-based index of the page the
// section came from; it exists for diagnostics only and never implies
// ownership.
type ContentSection struct {
	Type    SectionType `json:"type"`
	Content string      `json:"content,omitempty"`
	Image   string      `json:"image,omitempty"`
	Caption string      `json:"caption,omitempty"`
	Source  *int        `json:"source,omitempty"`
}

// Paragraph returns a paragraph section with the given content.
func Paragraph(content string) ContentSection {
	return ContentSection{Type: SectionParagraph, Content: content}
}

// WordCount returns the approximate number of words in the section content.
func (s ContentSection) WordCount() int {
	if s.Content == "" {
		return 0
	}
	return len(strings.Fields(s.Content))
}

// Validate checks that the section is well formed: a known type, content
// present for textual types, and an image reference for image sections.
func (s ContentSection) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown section type %q", s.Type)
	}
	switch s.Type {
	case SectionImage, SectionCover:
		if s.Image == "" && s.Content == "" {
			return fmt.Errorf("%s section missing image reference", s.Type)
		}
	case SectionPageDivision:
		// No content required.
	default:
		if s.Content == "" {
			return fmt.Errorf("%s section missing content", s.Type)
		}
	}
	return nil
}
