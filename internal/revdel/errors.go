package revdel

import (
	"errors"
	"fmt"
)

// Error is a redaction failure with a stable code.
//
// Structural errors (NOT_FOUND, LOCKOUT, CURRENT_VERSION, INTEGRITY,
// INVALID_REQUEST, PRE_COMMIT_FAILED) abort a run before any row is mutated
// and are returned from Coordinator.Run. Per-item errors
// (CONCURRENT_MODIFICATION, STORAGE_MIGRATION, STORE_ERROR) are recorded in
// the run's Status against the logical id they concern.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the logical id concerned, if the error is about one item.
	ID string

	// Phase is the migration phase for STORAGE_MIGRATION errors.
	Phase string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes redaction errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates none of the requested ids resolved to a row.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeLockout indicates the change would hide a record from every
	// non-elevated actor and the acting actor is not elevated.
	ErrCodeLockout ErrorCode = "LOCKOUT"

	// ErrCodeCurrentVersion indicates an attempt to hide the content of the
	// subject's current revision without acknowledgment.
	ErrCodeCurrentVersion ErrorCode = "CURRENT_VERSION"

	// ErrCodeConcurrentModification indicates a compare-and-swap matched no row.
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"

	// ErrCodeStorageMigration indicates a stage/delete/cleanup op failed or
	// was aborted.
	ErrCodeStorageMigration ErrorCode = "STORAGE_MIGRATION"

	// ErrCodeIntegrity indicates a row matched no known record shape.
	ErrCodeIntegrity ErrorCode = "INTEGRITY"

	// ErrCodeInvalidRequest indicates a malformed request.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodePreCommit indicates the pre-commit hook failed.
	ErrCodePreCommit ErrorCode = "PRE_COMMIT_FAILED"

	// ErrCodeStore indicates an I/O failure while writing one record.
	ErrCodeStore ErrorCode = "STORE_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Phase != "" {
		msg += fmt.Sprintf(" (phase=%s)", e.Phase)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsLockout returns true if err is a LOCKOUT error.
func IsLockout(err error) bool { return CodeOf(err) == ErrCodeLockout }

// IsCurrentVersion returns true if err is a CURRENT_VERSION error.
func IsCurrentVersion(err error) bool { return CodeOf(err) == ErrCodeCurrentVersion }

// IsConcurrentModification returns true if err is a CONCURRENT_MODIFICATION error.
func IsConcurrentModification(err error) bool {
	return CodeOf(err) == ErrCodeConcurrentModification
}

// IsStorageMigration returns true if err is a STORAGE_MIGRATION error.
func IsStorageMigration(err error) bool { return CodeOf(err) == ErrCodeStorageMigration }

// IsIntegrity returns true if err is an INTEGRITY error.
func IsIntegrity(err error) bool { return CodeOf(err) == ErrCodeIntegrity }

// IsInvalidRequest returns true if err is an INVALID_REQUEST error.
func IsInvalidRequest(err error) bool { return CodeOf(err) == ErrCodeInvalidRequest }

// NewNotFoundError reports that no requested id resolved.
func NewNotFoundError(kind Kind, subject Subject, ids []string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no %s rows for %s matched ids %v", kind, subject, ids),
	}
}

// NewLockoutError reports a self-lockout for id.
func NewLockoutError(id string, cause error) *Error {
	return &Error{
		Code:    ErrCodeLockout,
		Message: "change would leave the record visible to elevated actors only",
		ID:      id,
		Err:     cause,
	}
}

// NewCurrentVersionError reports an unacknowledged hide of the current revision.
func NewCurrentVersionError(id string) *Error {
	return &Error{
		Code:    ErrCodeCurrentVersion,
		Message: "cannot hide the content of the current revision without acknowledgment",
		ID:      id,
	}
}

// NewConcurrentModificationError reports a lost compare-and-swap for id.
func NewConcurrentModificationError(id string) *Error {
	return &Error{
		Code:    ErrCodeConcurrentModification,
		Message: "row changed or vanished since it was read",
		ID:      id,
	}
}

// NewStorageMigrationError reports a failed or aborted file op for id.
func NewStorageMigrationError(id, phase string, cause error) *Error {
	return &Error{
		Code:    ErrCodeStorageMigration,
		Message: "file storage migration failed",
		ID:      id,
		Phase:   phase,
		Err:     cause,
	}
}

// NewIntegrityError reports a row of unknown shape.
func NewIntegrityError(msg string, cause error) *Error {
	return &Error{Code: ErrCodeIntegrity, Message: msg, Err: cause}
}

// NewInvalidRequestError reports a malformed request.
func NewInvalidRequestError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}
