package revdel

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Namespace numbers used by subjects.
const (
	NamespaceSpecial = -1
	NamespaceMain    = 0
	NamespaceTalk    = 1
	NamespaceUser    = 2
	NamespaceFile    = 6
)

var namespacePrefixes = map[string]int{
	"special": NamespaceSpecial,
	"talk":    NamespaceTalk,
	"user":    NamespaceUser,
	"file":    NamespaceFile,
}

var namespaceNames = map[int]string{
	NamespaceSpecial: "Special",
	NamespaceTalk:    "Talk",
	NamespaceUser:    "User",
	NamespaceFile:    "File",
}

// logTitle is the special page listing log entries.
const logTitle = "Log"

// Subject scopes one redaction: a page, a file, or a log listing.
type Subject struct {
	Namespace int    `json:"namespace" yaml:"namespace"`
	Title     string `json:"title" yaml:"title"`
}

// NewSubject returns a subject with a normalised title: trimmed, spaces
// replaced by underscores, NFC composed.
func NewSubject(namespace int, title string) Subject {
	return Subject{Namespace: namespace, Title: normalizeTitle(title)}
}

// LogSubject is the log listing subject, optionally narrowed to one log type.
func LogSubject(logType string) Subject {
	if logType == "" {
		return Subject{Namespace: NamespaceSpecial, Title: logTitle}
	}
	return Subject{Namespace: NamespaceSpecial, Title: logTitle + "/" + normalizeTitle(logType)}
}

// ParseSubject reads "Title", "File:Title", "Special:Log/block" or
// "<number>:Title".
func ParseSubject(s string) (Subject, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Subject{}, NewInvalidRequestError("empty subject")
	}

	prefix, rest, found := strings.Cut(s, ":")
	if !found {
		return NewSubject(NamespaceMain, s), nil
	}
	if ns, ok := namespacePrefixes[strings.ToLower(strings.TrimSpace(prefix))]; ok {
		return NewSubject(ns, rest), nil
	}
	if ns, err := strconv.Atoi(strings.TrimSpace(prefix)); err == nil {
		return NewSubject(ns, rest), nil
	}
	// A colon that is not a namespace prefix is part of the title.
	return NewSubject(NamespaceMain, s), nil
}

// IsLogTarget reports whether s is the log listing (Special:Log or
// Special:Log/<type>).
func (s Subject) IsLogTarget() bool {
	return s.Namespace == NamespaceSpecial &&
		(s.Title == logTitle || strings.HasPrefix(s.Title, logTitle+"/"))
}

// String renders the subject as it would be typed.
func (s Subject) String() string {
	if s.Namespace == NamespaceMain {
		return s.Title
	}
	if name, ok := namespaceNames[s.Namespace]; ok {
		return name + ":" + s.Title
	}
	return fmt.Sprintf("%d:%s", s.Namespace, s.Title)
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.ReplaceAll(title, " ", "_")
	return norm.NFC.String(title)
}
