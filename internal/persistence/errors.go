package persistence

import "errors"

// ErrUnsupportedDriver is returned by Open for a driver it does not know.
var ErrUnsupportedDriver = errors.New("unsupported store driver")
