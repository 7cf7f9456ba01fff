// Package visibility defines the bitmask that controls which fields of a
// historical record are hidden, and who may still see them.
//
// The bit values match the on-disk *_deleted columns of every record table,
// so a Bits value can be written to and read from storage unchanged.
package visibility

import (
	"errors"
	"fmt"
	"strings"
)

// Bits is a visibility bitmask.
type Bits int

const (
	// Content hides the record's body (revision text, file bytes, log params).
	Content Bits = 1 << iota
	// Comment hides the edit summary / upload description / log comment.
	Comment
	// Author hides the user id and name.
	Author
	// Restricted limits every other set bit to actors holding the suppress
	// capability.
	Restricted
)

// Fields is every hideable field bit, i.e. everything but Restricted.
const Fields = Content | Comment | Author

// All is every defined bit.
const All = Fields | Restricted

// ErrUnknownBit is returned by Parse for a name it does not recognise.
var ErrUnknownBit = errors.New("unknown visibility bit")

var bitNames = []struct {
	bit  Bits
	name string
}{
	{Content, "content"},
	{Comment, "comment"},
	{Author, "author"},
	{Restricted, "restricted"},
}

var aliases = map[string]Bits{
	"content":    Content,
	"text":       Content,
	"file":       Content,
	"comment":    Comment,
	"summary":    Comment,
	"author":     Author,
	"user":       Author,
	"restricted": Restricted,
	"suppress":   Restricted,
}

// Has reports whether every bit in bit is set.
func (b Bits) Has(bit Bits) bool {
	return b&bit == bit
}

// Apply returns (b &^ clear) | set.
func (b Bits) Apply(set, clear Bits) Bits {
	return (b &^ clear) | set
}

// Valid reports whether b only uses defined bits.
func (b Bits) Valid() bool {
	return b&^All == 0
}

// String renders the set bits as "content|author", or "none".
func (b Bits) String() string {
	if b == 0 {
		return "none"
	}
	var parts []string
	for _, n := range bitNames {
		if b&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := b &^ All; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", int(rest)))
	}
	return strings.Join(parts, "|")
}

// Parse reads a comma or pipe separated list of bit names.
// An empty string parses to zero.
func Parse(s string) (Bits, error) {
	var out Bits
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, f := range fields {
		bit, ok := aliases[strings.ToLower(f)]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownBit, f)
		}
		out |= bit
	}
	return out, nil
}
