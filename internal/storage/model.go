// Package storage defines the records and generations persisted by a
// snapshot store, along with the errors a store reports.
package storage

import (
	"errors"
	"fmt"
)

// DefaultStoreName is the reserved file name of the snapshot store placed at
// the root of every tracked directory.
const DefaultStoreName = "watch.db"

// FileRecord is the content identity of one file at scan time.
type FileRecord struct {
	Path string
	Name string
	Hash string
}

// Generation names one of the two snapshot tables.
type Generation string

const (
	// Current holds the most recent scan.
	Current Generation = "current"
	// Previous holds the scan before Current.
	Previous Generation = "previous"
)

// Valid reports whether g is one of the known generations.
func (g Generation) Valid() bool {
	return g == Current || g == Previous
}

var (
	// ErrIO marks failures reading files or writing the store file.
	ErrIO = errors.New("io error")
	// ErrStore marks malformed, corrupt or otherwise unusable persisted state.
	ErrStore = errors.New("store error")
)

// Error describes a failed store operation.
type Error struct {
	Op         string
	Generation Generation
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	if e.Generation != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Generation, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the error kind and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	kind := e.Kind
	if kind == nil {
		kind = ErrStore
	}
	return []error{kind, e.Err}
}

// WrapIO marks err as an IO failure while keeping it visible to errors.Is.
func WrapIO(err error) error {
	if err == nil {
		return nil
	}
	return ioError{err: err}
}

type ioError struct{ err error }

func (e ioError) Error() string   { return e.err.Error() }
func (e ioError) Unwrap() []error { return []error{ErrIO, e.err} }
