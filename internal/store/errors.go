package store

import "errors"

// ErrNotFound indicates a missing record lookup.
var ErrNotFound = errors.New("record not found")

// ErrUnknownCollection is returned for a collection name outside the fixed set.
var ErrUnknownCollection = errors.New("unknown collection")
