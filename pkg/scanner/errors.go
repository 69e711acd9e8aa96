package scanner

import (
	"errors"
	"fmt"

	"github.com/gnana997/uigraph/pkg/parser"
	"github.com/gnana997/uigraph/pkg/store"
)

// ErrHistoryLookup wraps failures to read scan history. Such failures
// are fatal to a scan: no scan record is left behind.
var ErrHistoryLookup = errors.New("scan history lookup failed")

// ChecksumMismatchError reports a file whose content changed between
// hashing and analysis.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: content changed during scan (expected %s, got %s)", e.Path, short(e.Expected), short(e.Actual))
}

// FileError is a per-file failure produced by the worker pool.
type FileError struct {
	Path  string
	Error error
}

// failureKind classifies a per-file error for the scan record.
func failureKind(err error) store.FailureKind {
	var perr *parser.ParseError
	var mismatch *ChecksumMismatchError
	switch {
	case errors.As(err, &perr):
		return store.FailureParse
	case errors.As(err, &mismatch):
		return store.FailureChecksumMismatch
	default:
		return store.FailureRead
	}
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
