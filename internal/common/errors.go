// Package common defines shared constants and error values used by the
// fetch, auth and sink layers. Callers should use errors.Is / errors.As to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrAuth marks a failure to obtain or use a valid credential. It is
	// terminal for the work item that hit it.
	ErrAuth = errors.New("authentication failed")

	// ErrTransient marks a network-level failure that survived every retry.
	ErrTransient = errors.New("transient failure")

	// ErrUnknownColumn is returned when a record or update names a column the
	// target table does not declare.
	ErrUnknownColumn = errors.New("unknown column")
)

// FetchError describes an API call that did not produce a usable response.
// StatusCode is zero when no HTTP response was received.
type FetchError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports a batch that could not be persisted after its retry.
type WriteError struct {
	Table string
	Rows  int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d rows to %s: %v", e.Rows, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
