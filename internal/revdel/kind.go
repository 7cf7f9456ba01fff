package revdel

import (
	"regexp"
	"strconv"

	"github.com/samber/lo"
)

// Kind is the record family a redaction targets.
type Kind string

const (
	// KindRevision targets revisions by revision number, live or archived.
	KindRevision Kind = "revision"
	// KindArchive targets archived revisions of a deleted page by timestamp.
	KindArchive Kind = "archive"
	// KindOldImage targets superseded versions of an existing file by
	// archive name.
	KindOldImage Kind = "oldimage"
	// KindFileArchive targets versions of a deleted file by id.
	KindFileArchive Kind = "filearchive"
	// KindLog targets log entries by id.
	KindLog Kind = "logging"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{KindRevision, KindArchive, KindOldImage, KindFileArchive, KindLog}

var kindAliases = map[string]Kind{
	"revision":    KindRevision,
	"archive":     KindArchive,
	"oldimage":    KindOldImage,
	"filearchive": KindFileArchive,
	"logging":     KindLog,
	"log":         KindLog,
}

var (
	timestampID = regexp.MustCompile(`^\d{14}$`)
	archiveName = regexp.MustCompile(`^\d{14}!.+$`)
)

// ParseKind reads a kind name.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[s]
	if !ok {
		return "", NewInvalidRequestError("unknown kind %q (want one of %v)", s, Kinds)
	}
	return k, nil
}

// ValidateID checks that id has the form this kind's logical ids take.
func (k Kind) ValidateID(id string) error {
	switch k {
	case KindRevision, KindFileArchive, KindLog:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return NewInvalidRequestError("%s id %q: want a positive integer", k, id)
		}
	case KindArchive:
		if !timestampID.MatchString(id) {
			return NewInvalidRequestError("archive id %q: want a 14-digit timestamp", id)
		}
	case KindOldImage:
		if !archiveName.MatchString(id) {
			return NewInvalidRequestError("oldimage id %q: want <timestamp>!<name>", id)
		}
	default:
		return NewInvalidRequestError("unknown kind %q", k)
	}
	return nil
}

// CanonicalID validates id and returns it in the form records of this kind
// report it: numeric ids lose leading zeros and signs, so "010" and "+10"
// both name revision 10.
func (k Kind) CanonicalID(id string) (string, error) {
	if err := k.ValidateID(id); err != nil {
		return "", err
	}
	switch k {
	case KindRevision, KindFileArchive, KindLog:
		n, _ := strconv.ParseInt(id, 10, 64)
		return strconv.FormatInt(n, 10), nil
	}
	return id, nil
}

// canonicalIDs canonicalises ids for kind and drops duplicates, keeping
// first-seen order.
func canonicalIDs(kind Kind, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		c, err := kind.CanonicalID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return lo.Uniq(out), nil
}

// HasFiles reports whether records of this kind own bytes in the file
// repository that move when their content bit changes.
func (k Kind) HasFiles() bool {
	return k == KindOldImage
}

func (k Kind) valid() bool {
	return lo.Contains(Kinds, k)
}
