package docs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetDocRendersAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.adoc")
	if err := os.WriteFile(path, []byte("= Ledger\n\nSquares are *unique*.\n"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	svc := NewService(dir)
	html, err := svc.GetDoc(context.Background(), "ledger.adoc")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if !strings.Contains(html, "<strong>unique</strong>") {
		t.Fatalf("unexpected html: %s", html)
	}

	// A newer file invalidates the cached copy.
	if err := os.WriteFile(path, []byte("= Ledger\n\nSquares are _named_.\n"), 0o644); err != nil {
		t.Fatalf("rewrite doc: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	html, err = svc.GetDoc(context.Background(), "ledger.adoc")
	if err != nil {
		t.Fatalf("GetDoc after edit: %v", err)
	}
	if !strings.Contains(html, "<em>named</em>") {
		t.Fatalf("cache not refreshed: %s", html)
	}
}

func TestGetDocRejectsTraversal(t *testing.T) {
	svc := NewService(t.TempDir())
	for _, name := range []string{"", "../secret.adoc", "notes.txt", "sub/x.adoc"} {
		if _, err := svc.GetDoc(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("GetDoc(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestListDocs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.adoc", "a.adoc", "skip.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("= X\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	docs, err := NewService(dir).ListDocs()
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(docs) != 2 || docs[0] != "a.adoc" || docs[1] != "b.adoc" {
		t.Fatalf("docs = %v", docs)
	}
}
