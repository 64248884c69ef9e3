package release

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport classifies network failures and unexpected HTTP statuses.
	ErrTransport = errors.New("transport error")
	// ErrNotFound classifies a version missing from the catalog.
	ErrNotFound = errors.New("not found")
	// ErrFilesystem classifies directory and file write failures.
	ErrFilesystem = errors.New("filesystem error")
	// ErrDecode classifies catalog parsing and archive extraction failures.
	ErrDecode = errors.New("decode error")
)

// TransportError reports a failed fetch. Err is nil when the request
// completed with an unexpected status.
type TransportError struct {
	URL        string
	Status     string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %q: %v", e.URL, e.Err)
	}

	return fmt.Sprintf("not ok: fetching %q got status code %d (%s)", e.URL, e.StatusCode, e.Status)
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NotFoundError reports a version tag that the catalog does not list.
type NotFoundError struct {
	Tag string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such version %q", e.Tag)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FilesystemError reports a failed filesystem operation on Path.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

// Error implements error.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FilesystemError) Unwrap() error { return e.Err }

// Is matches ErrFilesystem.
func (e *FilesystemError) Is(target error) bool { return target == ErrFilesystem }

// DecodeError reports a catalog or archive that could not be decoded.
// Source names the URL or file being decoded.
type DecodeError struct {
	Source string
	Err    error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
