package book

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FormatVersion identifies the serialized book format consumed by the
// downstream EPUB/M4B renderers.
const FormatVersion = "1.0"

// Metadata holds book-level metadata extracted from front matter sections.
type Metadata struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	Language     string `json:"language"`
	Identifier   string `json:"identifier,omitempty"`
	CoverImage   string `json:"cover_image,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
}

// FillDefaults populates language, identifier, and creation date when
// absent. Callers that need deterministic output skip this.
func (m *Metadata) FillDefaults() {
	if m.Language == "" {
		m.Language = "en"
	}
	if m.Identifier == "" {
		m.Identifier = uuid.New().String()
	}
	if m.CreationDate == "" {
		m.CreationDate = time.Now().UTC().Format(time.RFC3339)
	}
}

// Chapter is a contiguous run of sections between chapter_header markers.
type Chapter struct {
	Number   int              `json:"number"`
	Title    string           `json:"title"`
	Sections []ContentSection `json:"sections"`
}

// WordCount returns the approximate word count across the chapter's sections.
func (c Chapter) WordCount() int {
	total := 0
	for _, s := range c.Sections {
		total += s.WordCount()
	}
	return total
}

// Book is the final assembled representation: merged sections grouped into
// chapters, plus metadata. Front matter is everything before the first
// chapter_header and carries no chapter number.
type Book struct {
	Metadata    Metadata         `json:"metadata"`
	FrontMatter []ContentSection `json:"front_matter,omitempty"`
	Chapters    []Chapter        `json:"chapters"`
}

// TotalWordCount returns the word count across all chapters.
func (b *Book) TotalWordCount() int {
	total := 0
	for _, c := range b.Chapters {
		total += c.WordCount()
	}
	return total
}

// chapterJSON is the serialized form of a chapter, with its word count
// precomputed for renderers.
type chapterJSON struct {
	Number    int              `json:"number"`
	Title     string           `json:"title"`
	Sections  []ContentSection `json:"sections"`
	WordCount int              `json:"word_count"`
}

type bookJSON struct {
	Metadata       Metadata         `json:"metadata"`
	FrontMatter    []ContentSection `json:"front_matter,omitempty"`
	Chapters       []chapterJSON    `json:"chapters"`
	TotalChapters  int              `json:"total_chapters"`
	TotalWordCount int              `json:"total_word_count"`
	FormatVersion  string           `json:"format_version"`
}

// MarshalJSON serializes the book in the renderer-facing format, including
// per-chapter word counts and aggregate totals.
func (b *Book) MarshalJSON() ([]byte, error) {
	out := bookJSON{
		Metadata:       b.Metadata,
		FrontMatter:    b.FrontMatter,
		Chapters:       make([]chapterJSON, 0, len(b.Chapters)),
		TotalChapters:  len(b.Chapters),
		TotalWordCount: b.TotalWordCount(),
		FormatVersion:  FormatVersion,
	}
	for _, c := range b.Chapters {
		out.Chapters = append(out.Chapters, chapterJSON{
			Number:    c.Number,
			Title:     c.Title,
			Sections:  c.Sections,
			WordCount: c.WordCount(),
		})
	}
	return json.Marshal(out)
}
