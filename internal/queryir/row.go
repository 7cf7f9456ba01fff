package queryir

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// TimestampLayout is the 14-digit UTC timestamp format stored in every
// *_timestamp column.
const TimestampLayout = "20060102150405"

// Row is one result row keyed by column name.
//
// Drivers disagree on scanned types (sqlite returns int64 and string, mysql
// returns []byte for most columns), so callers read through the typed
// accessors rather than asserting on the raw values.
type Row map[string]any

// Has reports whether the row carries column, even when its value is NULL.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// Int64 returns column as an int64.
func (r Row) Int64(column string) (int64, error) {
	v, ok := r[column]
	if !ok {
		return 0, fmt.Errorf("column %q not in row", column)
	}
	if b, isBytes := v.([]byte); isBytes {
		v = string(b)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", column, err)
	}
	return n, nil
}

// String returns column as a string. NULL reads as "".
func (r Row) String(column string) (string, error) {
	v, ok := r[column]
	if !ok {
		return "", fmt.Errorf("column %q not in row", column)
	}
	if v == nil {
		return "", nil
	}
	if b, isBytes := v.([]byte); isBytes {
		return string(b), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("column %q: %w", column, err)
	}
	return s, nil
}

// Time parses column as a TimestampLayout value.
func (r Row) Time(column string) (time.Time, error) {
	s, err := r.String(column)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %q: %w", column, err)
	}
	return t, nil
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
