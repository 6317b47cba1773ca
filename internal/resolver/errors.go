package resolver

import "errors"

var (
	// ErrLookupFailed wraps any failed factory or pair call.
	ErrLookupFailed = errors.New("pair lookup failed")
	ErrPairMismatch = errors.New("pair does not match requested tokens")
)
