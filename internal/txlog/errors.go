package txlog

import "errors"

var (
	ErrNotFound    = errors.New("transaction not in journal")
	ErrMissingHash = errors.New("transaction hash is required")
)
