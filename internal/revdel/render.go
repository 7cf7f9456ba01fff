package revdel

import (
	"strconv"

	"github.com/roach88/revdel/internal/visibility"
)

// Placeholders shown in place of fields the viewer may not see.
const (
	ContentHidden = "(content hidden)"
	AuthorHidden  = "(username removed)"
	CommentHidden = "(edit summary removed)"
)

// View is a record as one actor is allowed to see it.
type View struct {
	ID        string `json:"id" yaml:"id"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Author    string `json:"author" yaml:"author"`
	Comment   string `json:"comment" yaml:"comment"`
	Content   string `json:"content" yaml:"content"`
	Bits      string `json:"bits" yaml:"bits"`

	// Current marks the subject's current revision.
	Current bool `json:"current,omitempty" yaml:"current,omitempty"`
}

// Render builds the view of rec for actor. A hidden field the actor may
// still see keeps its value; one the actor may not see is replaced by its
// placeholder.
func Render(rec Record, actor visibility.Actor) View {
	v := View{
		ID:        rec.ID(),
		Kind:      rec.Kind(),
		Timestamp: rec.Timestamp(),
		Author:    rec.AuthorName(),
		Comment:   rec.Comment(),
		Content:   contentRef(rec),
		Bits:      rec.Bits().String(),
	}
	if v.Author == "" {
		v.Author = "#" + strconv.FormatInt(rec.AuthorID(), 10)
	}
	if !rec.CanView(visibility.Author, actor) {
		v.Author = AuthorHidden
	}
	if !rec.CanView(visibility.Comment, actor) {
		v.Comment = CommentHidden
	}
	if !rec.CanView(visibility.Content, actor) {
		v.Content = ContentHidden
	}
	return v
}

// contentRef names where the record's content can be fetched.
func contentRef(rec Record) string {
	switch r := rec.(type) {
	case *liveRevision:
		return "revision " + r.id
	case *archivedRevision:
		return "archived revision " + r.id
	case *archiveEntry:
		return "archived revision " + strconv.FormatInt(r.revID, 10)
	case *oldImage:
		if files := changedFiles(r); len(files) > 0 {
			return files[0]
		}
	case *fileArchiveEntry:
		return "deleted file " + r.storageKey
	case *logEntry:
		return r.logType + "/" + r.action + " " + Subject{Namespace: r.namespace, Title: r.title}.String()
	}
	return ""
}
