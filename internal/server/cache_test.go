package server

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrimCache(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png")
	b := writePNG(t, dir, "b.png")

	s := New(WithMaxCachedImages(1))
	if _, err := s.cache.Load(a); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s.trimCache()
	if s.cache.Len() != 1 {
		t.Fatalf("cache at its bound was cleared: Len() = %d", s.cache.Len())
	}

	if _, err := s.cache.Load(b); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s.trimCache()
	if s.cache.Len() != 0 {
		t.Errorf("cache over its bound kept %d images", s.cache.Len())
	}
}

func TestTrimCache_Disabled(t *testing.T) {
	dir := t.TempDir()
	s := New(WithMaxCachedImages(0))
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if _, err := s.cache.Load(writePNG(t, dir, name)); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	s.trimCache()
	if s.cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.cache.Len())
	}
}
