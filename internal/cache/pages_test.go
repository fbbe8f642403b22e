package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPageCache_PutLookup(t *testing.T) {
	c := NewFilePageCache(t.TempDir(), false)
	url := "https://en.wikipedia.org/wiki/Go"
	if err := c.Put(context.Background(), Page{URL: url, ContentType: "text/html", ETag: `"e1"`, Body: []byte("<p>hi</p>")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	p, ok := c.Lookup(context.Background(), url)
	if !ok {
		t.Fatal("expected hit")
	}
	if p.ETag != `"e1"` || string(p.Body) != "<p>hi</p>" || p.SavedAt.IsZero() {
		t.Fatalf("unexpected page: %+v", p)
	}
	if _, ok := c.Lookup(context.Background(), "https://en.wikipedia.org/wiki/Rust"); ok {
		t.Fatal("unexpected hit for another url")
	}
}

func TestPageCache_NilIsMiss(t *testing.T) {
	var c *PageCache
	if _, ok := c.Lookup(context.Background(), "https://x.example"); ok {
		t.Fatal("nil cache must miss")
	}
	if err := c.Put(context.Background(), Page{URL: "https://x.example"}); err != nil {
		t.Fatalf("nil cache put: %v", err)
	}
}

func TestPageCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewFilePageCache(dir, false)
	url := "https://example.com/x"
	if err := os.WriteFile(filepath.Join(dir, pageKey(url)+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup(context.Background(), url); ok {
		t.Fatal("corrupt entry must miss")
	}
}

func TestPurgeByAge_Nested(t *testing.T) {
	dir := t.TempDir()
	pages := filepath.Join(dir, "pages")
	c := NewFilePageCache(pages, false)
	for _, u := range []string{"https://a.com/old", "https://a.com/new"} {
		if err := c.Put(context.Background(), Page{URL: u, Body: []byte(u)}); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(pages, pageKey("https://a.com/old")+".json"), past, past); err != nil {
		t.Fatal(err)
	}
	removed, err := PurgeByAge(dir, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if _, ok := c.Lookup(context.Background(), "https://a.com/old"); ok {
		t.Fatal("expected old page removed")
	}
	if _, ok := c.Lookup(context.Background(), "https://a.com/new"); !ok {
		t.Fatal("new page should remain")
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.json"), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatal("blank dir must be rejected")
	}
}
