package carcheck

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrFileNotFound indicates a file record was not found
	ErrFileNotFound = errors.New("file not found")

	// ErrNotAnalyzed indicates the file has no stored classification
	ErrNotAnalyzed = errors.New("file has not been analyzed")

	// ErrBlobNotFound indicates the stored blob does not exist
	ErrBlobNotFound = errors.New("blob not found")

	// ErrClassifierNotConfigured indicates the classifier is missing credentials or endpoint
	ErrClassifierNotConfigured = errors.New("classifier not configured")

	// ErrClassifierTimeout indicates the classifier did not answer in time
	ErrClassifierTimeout = errors.New("classifier timeout")

	// ErrClassifierUnavailable indicates the classifier could not be reached
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrClassifierRemote indicates the classifier answered with an error status
	ErrClassifierRemote = errors.New("classifier returned an error")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FileError represents an error related to file record operations
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ClassifierError wraps a failed classifier call. Kind is one of the
// ErrClassifier* sentinels so callers can match it with errors.Is.
type ClassifierError struct {
	Backend    string
	Op         string
	Kind       error
	StatusCode int
	Err        error
}

func (e *ClassifierError) Error() string {
	msg := fmt.Sprintf("classifier %s %s: %v", e.Backend, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClassifierError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsNotFound reports whether err means the file, its blob or its
// classification does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrBlobNotFound) ||
		errors.Is(err, ErrNotAnalyzed)
}
