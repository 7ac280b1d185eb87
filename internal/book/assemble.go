package book

import "fmt"

// Assemble groups a merged section stream into a Book. Sections before the
// first chapter_header become front matter; title, author, and cover
// sections in front matter are lifted into metadata. After the first
// chapter_header those types stay in the chapter's section stream, so an
// off-nominal classification never drops content from the text. Chapter
// numbers are sequential starting at 1. The result is deterministic for a
// given input.
func Assemble(sections []ContentSection) *Book {
	b := &Book{}

	var current *Chapter
	for _, sec := range sections {
		switch {
		case sec.Type == SectionChapterHeader:
			if current != nil {
				b.Chapters = append(b.Chapters, *current)
			}
			current = &Chapter{
				Number:   len(b.Chapters) + 1,
				Title:    chapterTitle(sec.Content),
				Sections: []ContentSection{sec},
			}
		case current != nil:
			current.Sections = append(current.Sections, sec)
		default:
			switch sec.Type {
			case SectionTitle:
				b.Metadata.Title = sec.Content
			case SectionAuthor:
				b.Metadata.Author = sec.Content
			case SectionCover:
				if sec.Image != "" {
					b.Metadata.CoverImage = sec.Image
				}
			default:
				b.FrontMatter = append(b.FrontMatter, sec)
			}
		}
	}
	if current != nil {
		b.Chapters = append(b.Chapters, *current)
	}

	return b
}

// chapterTitle renders a chapter_header's content as a chapter title.
// Headers are often bare numbers ("1", "IV"); prefix those for readability.
func chapterTitle(content string) string {
	if content == "" {
		return "Chapter"
	}
	return fmt.Sprintf("Chapter %s", content)
}
