// Package store holds the error vocabulary shared by every remote store implementation.
package store

import "errors"

// ErrNotFound is returned by repositories when the requested row does not exist.
// Callers branch on it with errors.Is; any other error is a genuine failure.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err is, or wraps, ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
