// Package testutil holds fixtures shared by package tests and the scenario
// harness.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/store"
)

// Zone directories of repos built by NewRepo.
const (
	PublicDir  = "public"
	DeletedDir = "deleted"
)

// Blob is the bytes of one file version. Deleted blobs live in the deleted
// zone under their content key; the rest at their public archive path.
type Blob struct {
	Name        string `yaml:"name"`
	ArchiveName string `yaml:"archive_name"`
	Content     string `yaml:"content"`
	Deleted     bool   `yaml:"deleted"`
}

// Key returns the blob's deleted-zone key.
func (b Blob) Key() string {
	return filestore.DeletedKey(filestore.ContentSHA1([]byte(b.Content)), b.Name)
}

// Path returns the blob's public archive path.
func (b Blob) Path() string {
	return filestore.ArchivePath(b.Name, b.ArchiveName)
}

// Fixture is the rows and file bytes a test starts from.
type Fixture struct {
	Pages         []store.Page             `yaml:"pages"`
	Revisions     []store.Revision         `yaml:"revisions"`
	Archive       []store.ArchivedRevision `yaml:"archive"`
	OldImages     []store.OldImage         `yaml:"oldimages"`
	FileArchive   []store.FileArchive      `yaml:"filearchive"`
	Logs          []store.LogEntry         `yaml:"logging"`
	RecentChanges []store.RecentChange     `yaml:"recentchanges"`
	Blobs         []Blob                   `yaml:"blobs"`
}

// Load inserts the fixture into s and writes its blobs into repo. repo may
// be nil when the fixture has no blobs.
//
// An oldimage or filearchive row with no sha1 (or storage key) takes it from
// the blob with the same archive name.
func (f Fixture) Load(ctx context.Context, s *store.Store, repo *filestore.Repo) error {
	blobs := make(map[string]Blob, len(f.Blobs))
	for _, b := range f.Blobs {
		blobs[b.ArchiveName] = b
	}

	for _, p := range f.Pages {
		if err := s.InsertPage(ctx, p); err != nil {
			return err
		}
	}
	for _, r := range f.Revisions {
		if err := s.InsertRevision(ctx, r); err != nil {
			return err
		}
	}
	for _, a := range f.Archive {
		if err := s.InsertArchive(ctx, a); err != nil {
			return err
		}
	}
	for _, oi := range f.OldImages {
		if b, ok := blobs[oi.ArchiveName]; ok && oi.SHA1 == "" {
			oi.SHA1 = filestore.ContentSHA1([]byte(b.Content))
			oi.Size = int64(len(b.Content))
		}
		if err := s.InsertOldImage(ctx, oi); err != nil {
			return err
		}
	}
	for _, fa := range f.FileArchive {
		if b, ok := blobs[fa.ArchiveName]; ok {
			if fa.SHA1 == "" {
				fa.SHA1 = filestore.ContentSHA1([]byte(b.Content))
				fa.Size = int64(len(b.Content))
			}
			if fa.StorageKey == "" {
				fa.StorageKey = b.Key()
			}
		}
		if err := s.InsertFileArchive(ctx, fa); err != nil {
			return err
		}
	}
	for _, l := range f.Logs {
		if err := s.InsertLog(ctx, l); err != nil {
			return err
		}
	}
	for _, rc := range f.RecentChanges {
		if err := s.InsertRecentChange(ctx, rc); err != nil {
			return err
		}
	}

	if len(f.Blobs) > 0 && repo == nil {
		return fmt.Errorf("fixture has %d blobs but no repo", len(f.Blobs))
	}
	for _, b := range f.Blobs {
		var err error
		if b.Deleted {
			err = repo.PutDeleted(b.Key(), []byte(b.Content))
		} else {
			err = repo.Put(b.Path(), []byte(b.Content))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// NewStore opens a sqlite store in a temporary directory, closed when the
// test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "revdel.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewRepo creates an in-memory file repo.
func NewRepo() *filestore.Repo {
	return filestore.NewMemory(PublicDir, DeletedDir)
}

// Setup opens a store and repo loaded with Standard().
func Setup(t testing.TB) (*store.Store, *filestore.Repo) {
	t.Helper()
	s := NewStore(t)
	repo := NewRepo()
	if err := Standard().Load(context.Background(), s, repo); err != nil {
		t.Fatalf("loading standard fixture failed: %v", err)
	}
	return s, repo
}

// Standard is the shared fixture:
//
//   - page "Page" (id 3) with live revisions 10 and 11 (current), and
//     revision 9 in the archive from an earlier deletion;
//   - deleted page "Gone" with archived revisions 20 and 21;
//   - file "Photo.png" with a visible old version (20240101000000) and a
//     content-hidden one (20240102000000);
//   - deleted file "Lost.png" (filearchive id 5);
//   - log entries 100 and 101 (type delete) and 102 (type block).
func Standard() Fixture {
	return Fixture{
		Pages: []store.Page{
			{ID: 3, Namespace: 0, Title: "Page", Latest: 11},
		},
		Revisions: []store.Revision{
			{ID: 10, PageID: 3, Timestamp: "20240101000000", UserID: 7, UserText: "Alice", Comment: "first"},
			{ID: 11, PageID: 3, Timestamp: "20240102000000", UserID: 8, UserText: "Bob", Comment: "second"},
		},
		Archive: []store.ArchivedRevision{
			{Namespace: 0, Title: "Page", RevID: 9, Timestamp: "20231231000000", UserID: 9, UserText: "Carol", Comment: "zeroth"},
			{Namespace: 0, Title: "Gone", RevID: 20, Timestamp: "20230101000000", UserID: 7, UserText: "Alice", Comment: "created"},
			{Namespace: 0, Title: "Gone", RevID: 21, Timestamp: "20230102000000", UserID: 8, UserText: "Bob", Comment: "expanded"},
		},
		OldImages: []store.OldImage{
			{Name: "Photo.png", ArchiveName: "20240101000000!Photo.png", Timestamp: "20240101000000", UserID: 7, UserText: "Alice", Description: "original"},
			{Name: "Photo.png", ArchiveName: "20240102000000!Photo.png", Timestamp: "20240102000000", UserID: 8, UserText: "Bob", Description: "retouched", Deleted: 1},
		},
		FileArchive: []store.FileArchive{
			{ID: 5, Name: "Lost.png", ArchiveName: "20230301000000!Lost.png", Timestamp: "20230301000000", UserID: 9, UserText: "Carol", Description: "lost upload"},
		},
		Logs: []store.LogEntry{
			{ID: 100, Type: "delete", Action: "delete", Timestamp: "20240103000000", UserID: 1, UserText: "Admin", Namespace: 0, Title: "Page", Comment: "cleanup"},
			{ID: 101, Type: "delete", Action: "delete", Timestamp: "20240104000000", UserID: 1, UserText: "Admin", Namespace: 0, Title: "Other", Comment: "spam"},
			{ID: 102, Type: "block", Action: "block", Timestamp: "20240105000000", UserID: 1, UserText: "Admin", Namespace: 2, Title: "Vandal", Comment: "vandalism"},
		},
		RecentChanges: []store.RecentChange{
			{Timestamp: "20240101000000", Namespace: 0, Title: "Page", CurID: 3, ThisOldID: 10},
			{Timestamp: "20240102000000", Namespace: 0, Title: "Page", CurID: 3, ThisOldID: 11},
			{Timestamp: "20240103000000", Namespace: 0, Title: "Page", LogID: 100},
		},
		Blobs: []Blob{
			{Name: "Photo.png", ArchiveName: "20240101000000!Photo.png", Content: "photo v1"},
			{Name: "Photo.png", ArchiveName: "20240102000000!Photo.png", Content: "photo v2", Deleted: true},
			{Name: "Lost.png", ArchiveName: "20230301000000!Lost.png", Content: "lost v1", Deleted: true},
		},
	}
}
