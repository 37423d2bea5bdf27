// Package errors defines the sentinel error kinds raised by the index and
// its storage collaborators, and wraps them with caller context using
// github.com/pkg/errors so call sites keep both a stack and a message
// while still being able to test the kind with errors.Is.
package errors

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrBadIndexInfo is raised by Open when an existing index file's meta
	// page identity fields don't match the caller's arguments.
	ErrBadIndexInfo = errors.New("index identity does not match meta page")

	// ErrBadOpcodes is raised by StartScan when the low/high operator
	// combination isn't one of the allowed pairs.
	ErrBadOpcodes = errors.New("bad scan opcodes")

	// ErrBadScanRange is raised by StartScan when low > high.
	ErrBadScanRange = errors.New("low value greater than high value")

	// ErrNoSuchKeyFound is raised by StartScan when no entry in the tree
	// satisfies the requested bounds.
	ErrNoSuchKeyFound = errors.New("no entry satisfies scan bounds")

	// ErrScanNotInitialized is raised by ScanNext/EndScan when no scan is
	// active.
	ErrScanNotInitialized = errors.New("scan not initialized")

	// ErrIndexScanCompleted is raised by ScanNext once a scan has been
	// exhausted.
	ErrIndexScanCompleted = errors.New("index scan already completed")

	// ErrPageNotPinned is raised by the buffer manager when UnpinPage is
	// called for a page with no outstanding pin. Swallowed by the index
	// only at EndScan and Close.
	ErrPageNotPinned = errors.New("page not pinned")

	// ErrHashNotFound is raised by the buffer manager when UnpinPage is
	// asked about a page the pool has never heard of.
	// Swallowed by the index only at EndScan and Close.
	ErrHashNotFound = errors.New("page not present in buffer pool")

	// ErrFileNotFound signals, internally, that the paged file store has
	// no file under the given name. Open uses it to switch to the
	// create-new path; it never reaches a caller of the index.
	ErrFileNotFound = errors.New("file not found")

	// ErrEndOfFile signals, internally, that a heap-file scan has visited
	// every row. Open's bulk-load loop uses it to terminate and trigger a
	// flush; it never reaches a caller of the index.
	ErrEndOfFile = errors.New("end of file")
)

// Is reports whether err wraps target anywhere in its chain. Re-exported so
// callers of this package don't need a second import of the stdlib errors
// package alongside it.
func Is(err, target error) bool { return errors.Is(err, target) }

// Wrap attaches msg as context to err using github.com/pkg/errors, which
// also records a stack trace at the call site — the convention the rest of
// this module's lineage (see vahagz-go-dbms) uses throughout its executor
// and server packages instead of bare fmt.Errorf.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, format, args...)
}

// Errorf builds a new error (with a stack trace attached) from a format
// string, for validation failures that don't wrap an underlying error.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}
