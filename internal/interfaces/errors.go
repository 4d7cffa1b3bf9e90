package interfaces

import "errors"

// ErrNotFound is returned by storage lookups when no record exists
var ErrNotFound = errors.New("not found")
