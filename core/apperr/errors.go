// Package apperr holds the error taxonomy shared by the ingestion pipeline,
// the search engine and the HTTP layer. Callers classify with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks caller mistakes. Not retried.
	ErrValidation = errors.New("validation error")
	// ErrEmptyUpload is a zero-byte or missing upload.
	ErrEmptyUpload = &wrapped{msg: "empty upload", parent: ErrValidation}
	// ErrNotFound covers both a missing record and a record owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrConflict is a duplicate identity (username, email).
	ErrConflict = errors.New("conflict")
	// ErrStoreUnavailable is surfaced as-is so the caller can retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPersistence is a failed record write during ingestion.
	ErrPersistence = errors.New("persistence failure")
	// ErrForbidden is only used by the public share endpoints (download not allowed).
	ErrForbidden = errors.New("forbidden")
)

// wrapped is a sentinel that also matches its parent with errors.Is.
type wrapped struct {
	msg    string
	parent error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.parent }

// Validation returns an ErrValidation carrying a caller-facing message.
func Validation(msg string) error {
	return &wrapped{msg: msg, parent: ErrValidation}
}
