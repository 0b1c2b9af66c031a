package api

import "errors"

// ErrNotFound reports that a named artifact or resource does not exist on the runtime.
var ErrNotFound = errors.New("not found")
