package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedPage creates page "Page" (id 3) with live revisions 10 and 11.
func seedPage(t *testing.T, s *Store) {
	t.Helper()
	ctx := t.Context()

	if err := s.InsertPage(ctx, Page{ID: 3, Namespace: 0, Title: "Page", Latest: 11}); err != nil {
		t.Fatalf("InsertPage failed: %v", err)
	}
	for _, r := range []Revision{
		{ID: 10, PageID: 3, Timestamp: "20240101000000", UserID: 7, UserText: "Alice", Comment: "first"},
		{ID: 11, PageID: 3, Timestamp: "20240102000000", UserID: 8, UserText: "Bob", Comment: "second"},
	} {
		if err := s.InsertRevision(ctx, r); err != nil {
			t.Fatalf("InsertRevision(%d) failed: %v", r.ID, err)
		}
	}
}
