package pagesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSource_Pages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page-002.txt", []byte("third page"))
	writeFile(t, dir, "page-000.txt", []byte("first page"))
	writeFile(t, dir, "page-001.txt", []byte("second page"))
	writeFile(t, dir, "page-001.png", []byte{0x89, 0x50, 0x4e, 0x47})
	writeFile(t, dir, "notes.md", []byte("not a page"))

	src := &DirSource{Dir: dir}
	pages, err := src.Pages(context.Background())
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	wantText := []string{"first page", "second page", "third page"}
	for i, p := range pages {
		if p.Index != i {
			t.Errorf("page %d has Index %d", i, p.Index)
		}
		if p.RawText != wantText[i] {
			t.Errorf("page %d RawText = %q, want %q", i, p.RawText, wantText[i])
		}
		if p.Status != StatusPending {
			t.Errorf("page %d Status = %q, want pending", i, p.Status)
		}
	}

	if pages[0].Image != nil {
		t.Error("page 0 should have no image")
	}
	if pages[1].Image == nil {
		t.Error("page 1 should have its .png image")
	}
	if pages[1].ImageRef == "" {
		t.Error("page 1 should record its image path")
	}
}

func TestDirSource_SkipImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page-000.txt", []byte("text"))
	writeFile(t, dir, "page-000.png", []byte{0x89})

	src := &DirSource{Dir: dir, SkipImages: true}
	pages, err := src.Pages(context.Background())
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if pages[0].Image != nil {
		t.Error("SkipImages should leave Image nil")
	}
}

func TestDirSource_ImageExtensionFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page-000.txt", []byte("text"))
	writeFile(t, dir, "page-000.jpeg", []byte{0xff, 0xd8})

	src := &DirSource{Dir: dir}
	pages, err := src.Pages(context.Background())
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if pages[0].Image == nil {
		t.Error("should find the .jpeg image")
	}
}

func TestDirSource_MissingDir(t *testing.T) {
	src := &DirSource{Dir: filepath.Join(t.TempDir(), "does-not-exist")}
	if _, err := src.Pages(context.Background()); err == nil {
		t.Error("missing directory should return an error")
	}
}

func TestDirSource_EmptyDir(t *testing.T) {
	src := &DirSource{Dir: t.TempDir()}
	pages, err := src.Pages(context.Background())
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("empty dir should yield no pages, got %d", len(pages))
	}
}
