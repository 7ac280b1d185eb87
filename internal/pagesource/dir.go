package pagesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExtensions are tried in order when looking for a page's image.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff"}

// DirSource reads pages from a directory of per-page OCR text files, one
// .txt per page, with an optional matching image alongside (same stem,
// image extension). Page order is the lexicographic order of the text
// file names, which matches the zero-padded naming the capture tooling
// produces.
type DirSource struct {
	Dir string

	// SkipImages leaves Page.Image nil, for text-only correction runs.
	SkipImages bool
}

// Pages reads the directory and returns its pages ordered by file name.
func (s *DirSource) Pages(ctx context.Context) ([]Page, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read page directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pages := make([]Page, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.Dir, name)
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		page := Page{
			Index:   i,
			RawText: string(text),
			Status:  StatusPending,
		}

		if !s.SkipImages {
			stem := strings.TrimSuffix(path, filepath.Ext(path))
			for _, ext := range imageExtensions {
				imgPath := stem + ext
				img, err := os.ReadFile(imgPath)
				if err != nil {
					continue
				}
				page.ImageRef = imgPath
				page.Image = img
				break
			}
		}

		pages = append(pages, page)
	}

	return pages, nil
}

// Verify interface
var _ Source = (*DirSource)(nil)
