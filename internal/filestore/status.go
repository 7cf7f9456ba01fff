package filestore

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

// Op names used in Failure.Op.
const (
	OpStage  = "stage"
	OpDelete = "delete"
	OpPurge  = "purge"
)

// Failure is one op that did not apply.
type Failure struct {
	Op   string
	Tag  string
	Path string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Path, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Status aggregates the outcome of one batch call.
type Status struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

// OK reports whether every attempted op succeeded.
func (s *Status) OK() bool {
	return s == nil || len(s.Failures) == 0
}

// Err returns every failure as one error, or nil.
func (s *Status) Err() error {
	if s.OK() {
		return nil
	}
	var merr *multierror.Error
	for _, f := range s.Failures {
		merr = multierror.Append(merr, f)
	}
	return merr.ErrorOrNil()
}

// FailedTags returns the distinct tags of failed ops, in failure order.
func (s *Status) FailedTags() []string {
	if s == nil {
		return nil
	}
	return lo.Uniq(lo.Map(s.Failures, func(f Failure, _ int) string { return f.Tag }))
}

func (s *Status) success() {
	s.Attempted++
	s.Succeeded++
}

func (s *Status) fail(op, tag, path string, err error) {
	s.Attempted++
	s.Failures = append(s.Failures, Failure{Op: op, Tag: tag, Path: path, Err: err})
}
