package revdel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/testutil"
	"github.com/roach88/revdel/internal/visibility"
)

func TestRender_VisibleRecord(t *testing.T) {
	s, _ := testutil.Setup(t)
	rec := queryRecords(t, s, KindRevision, pageSubj, "10").Records()[0]

	assert.Equal(t, View{
		ID:        "10",
		Kind:      KindRevision,
		Timestamp: "20240101000000",
		Author:    "Alice",
		Comment:   "first",
		Content:   "revision 10",
		Bits:      "none",
	}, Render(rec, reader))
}

func TestRender_HiddenFieldsByActor(t *testing.T) {
	s, _ := testutil.Setup(t)
	ctx := t.Context()

	rec := queryRecords(t, s, KindRevision, pageSubj, "10").Records()[0]
	ok, err := rec.SetBits(ctx, nil, visibility.Author|visibility.Comment)
	require.NoError(t, err)
	require.True(t, ok)

	v := Render(rec, reader)
	assert.Equal(t, AuthorHidden, v.Author)
	assert.Equal(t, CommentHidden, v.Comment)
	assert.Equal(t, "revision 10", v.Content, "content was not hidden")

	v = Render(rec, admin)
	assert.Equal(t, "Alice", v.Author, "deleted fields stay readable to admins")
	assert.Equal(t, "first", v.Comment)

	ok, err = rec.SetBits(ctx, nil, visibility.Author|visibility.Restricted)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, AuthorHidden, Render(rec, admin).Author, "restricted hides from admins")
	assert.Equal(t, "first", Render(rec, admin).Comment)
	assert.Equal(t, "Alice", Render(rec, oversighter).Author)
}

func TestRender_ContentReferences(t *testing.T) {
	s, _ := testutil.Setup(t)

	tests := []struct {
		name    string
		kind    Kind
		subject Subject
		id      string
		want    string
	}{
		{"archived revision", KindRevision, pageSubj, "9", "archived revision 9"},
		{"archive by timestamp", KindArchive, goneSubj, "20230102000000", "archived revision 21"},
		{"old file version", KindOldImage, photoSubj, photoV1, filestore.ArchivePath("Photo.png", photoV1)},
		{"log entry", KindLog, LogSubject(""), "102", "block/block User:Vandal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := queryRecords(t, s, tt.kind, tt.subject, tt.id).Records()[0]
			assert.Contains(t, Render(rec, oversighter).Content, tt.want)
		})
	}
}

func TestRender_HiddenOldImageContent(t *testing.T) {
	s, _ := testutil.Setup(t)
	rec := queryRecords(t, s, KindOldImage, photoSubj, photoV2).Records()[0]

	assert.Equal(t, ContentHidden, Render(rec, reader).Content)
	assert.Equal(t, "content", Render(rec, reader).Bits)
	assert.NotEqual(t, ContentHidden, Render(rec, admin).Content)
}

func TestRender_AnonymousAuthor(t *testing.T) {
	rec := &logEntry{entry: entry{id: "7", userID: 42}}
	assert.Equal(t, "#42", Render(rec, reader).Author)
}
