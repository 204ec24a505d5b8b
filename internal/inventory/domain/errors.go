package domain

import "errors"

// ErrStaleVersion is returned by item stores when a conditional stock update
// finds the row at a different version than the caller read.
var ErrStaleVersion = errors.New("inventory item was modified concurrently")
