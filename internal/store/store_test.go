package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/valpere/tovis/internal/tovis"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDocument(t *testing.T) *tovis.Document {
	t.Helper()
	doc := tovis.New()
	if _, err := doc.ParseText("#SourceLang: en\n#TargetLang: uk\n@:0} Hello world\nλ:0} Привіт світ\n@:1} Bye\n"); err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	return doc
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_SaveAndLoadDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := sampleDocument(t)

	id, created, err := s.SaveDocument(ctx, "greeting.txt", doc)
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if !created {
		t.Error("expected a new document")
	}

	loaded, err := s.LoadDocument(ctx, id)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if loaded.String() != doc.String() {
		t.Errorf("loaded document differs:\n%s\nwant:\n%s", loaded.String(), doc.String())
	}
}

func TestStore_SaveDocument_Dedupe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _, err := s.SaveDocument(ctx, "a", sampleDocument(t))
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	second, created, err := s.SaveDocument(ctx, "b", sampleDocument(t))
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if created {
		t.Error("expected identical content to be deduplicated")
	}
	if first != second {
		t.Errorf("expected id %s, got %s", first, second)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Name != "a" || docs[0].BlockCount != 2 || docs[0].SourceLang != "en" {
		t.Errorf("unexpected document info: %+v", docs[0])
	}
	if len(docs[0].Checksum) != 64 {
		t.Errorf("expected a 32-byte hex checksum, got %q", docs[0].Checksum)
	}
}

func TestStore_UpdateDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.SaveDocument(ctx, "greeting.txt", sampleDocument(t))
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	before, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}

	doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	doc.EnsureLength(3)
	if err := doc.AddCandidate(1, "mymemory", "Бувай"); err != nil {
		t.Fatalf("AddCandidate failed: %v", err)
	}

	changed, err := s.UpdateDocument(ctx, id, doc)
	if err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}
	if !changed {
		t.Error("expected the document to change")
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected the update in place, got %d documents", len(docs))
	}
	got := docs[0]
	if got.ID != id || got.Name != "greeting.txt" || got.BlockCount != 3 {
		t.Errorf("unexpected document info: %+v", got)
	}
	if got.Checksum == before[0].Checksum {
		t.Error("expected the checksum to change")
	}
	if got.UpdatedAt.Before(before[0].UpdatedAt) || !got.CreatedAt.Equal(before[0].CreatedAt) {
		t.Errorf("unexpected timestamps: created %v updated %v, before %+v", got.CreatedAt, got.UpdatedAt, before[0])
	}

	loaded, err := s.LoadDocument(ctx, id)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if loaded.String() != doc.String() {
		t.Errorf("loaded document differs:\n%s\nwant:\n%s", loaded.String(), doc.String())
	}

	changed, err = s.UpdateDocument(ctx, id, doc)
	if err != nil || changed {
		t.Errorf("expected an unchanged update, got %v, %v", changed, err)
	}
}

func TestStore_UpdateDocument_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpdateDocument(ctx, "missing", sampleDocument(t)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	first, _, err := s.SaveDocument(ctx, "a", sampleDocument(t))
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	other := tovis.New()
	if _, err := other.ParseText("@:0} Other\n"); err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	second, _, err := s.SaveDocument(ctx, "b", other)
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	if _, err := s.UpdateDocument(ctx, second, sampleDocument(t)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := s.LoadDocument(ctx, first); err != nil {
		t.Errorf("first document should be intact: %v", err)
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.SaveDocument(ctx, "a", sampleDocument(t))
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	if err := s.DeleteDocument(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.LoadDocument(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on load, got %v", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	in := []byte("@:0} Привіт\n@:1} Привіт\n@:2} Привіт\n")
	body, err := compress(in)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	out, err := decompress(body)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if string(out) != string(in) {
		t.Errorf("got %q, want %q", out, in)
	}

	if _, err := decompress([]byte("not xz")); err == nil {
		t.Error("expected error for corrupt body")
	}
}

func TestStore_CandidateCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	text, found, err := s.GetCachedCandidate(ctx, "google", "Hello", "en", "uk")
	if err != nil {
		t.Errorf("GetCachedCandidate failed: %v", err)
	}
	if found || text != "" {
		t.Errorf("expected miss, got found=%v text=%q", found, text)
	}

	if err := s.SaveCandidate(ctx, "google", " Hello ", "en", "uk", "Привіт"); err != nil {
		t.Fatalf("SaveCandidate failed: %v", err)
	}
	if err := s.SaveCandidate(ctx, "mymemory", "Hello", "en", "uk", "Вітаю"); err != nil {
		t.Fatalf("SaveCandidate failed: %v", err)
	}

	text, found, err = s.GetCachedCandidate(ctx, "google", "Hello", "en", "uk")
	if err != nil {
		t.Errorf("GetCachedCandidate failed: %v", err)
	}
	if !found || text != "Привіт" {
		t.Errorf("expected found=true and 'Привіт', got found=%v and %q", found, text)
	}

	if _, found, _ = s.GetCachedCandidate(ctx, "google", "Hello", "en", "de"); found {
		t.Error("en->de: expected not found")
	}

	n, err := s.ClearCandidateCache(ctx)
	if err != nil {
		t.Fatalf("ClearCandidateCache failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
}

func TestStore_Glossary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tgt := range []string{"світ", "мир", "світ"} {
		if err := s.AddGlossaryTerm(ctx, "en", "uk", "world", tgt); err != nil {
			t.Fatalf("AddGlossaryTerm failed: %v", err)
		}
	}
	if err := s.AddGlossaryTerm(ctx, "en", "de", "world", "Welt"); err != nil {
		t.Fatalf("AddGlossaryTerm failed: %v", err)
	}

	terms, err := s.GetGlossaryTerms(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("GetGlossaryTerms failed: %v", err)
	}
	got := terms["world"]
	if len(got) != 2 || got[0] != "світ" || got[1] != "мир" {
		t.Errorf("expected [світ мир], got %v", got)
	}

	all, err := s.ListGlossaryTerms(ctx, "", "")
	if err != nil {
		t.Fatalf("ListGlossaryTerms failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	de, err := s.ListGlossaryTerms(ctx, "", "de")
	if err != nil {
		t.Fatalf("ListGlossaryTerms failed: %v", err)
	}
	if len(de) != 1 || de[0].TargetTerm != "Welt" {
		t.Fatalf("expected one en->de entry, got %+v", de)
	}

	if err := s.DeleteGlossaryTerm(ctx, de[0].ID); err != nil {
		t.Fatalf("DeleteGlossaryTerm failed: %v", err)
	}
	all, _ = s.ListGlossaryTerms(ctx, "", "")
	if len(all) != 2 {
		t.Errorf("expected 2 entries after delete, got %d", len(all))
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Hello  ", "Hello"},
		{"é", "é"},
		{"\t\nHello\t\n", "Hello"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeText(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
