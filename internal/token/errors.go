package token

import "errors"

var (
	// ErrInvalidAmount is returned for unparsable or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnknownToken is returned when an identifier is neither the native
	// symbol nor a hex address.
	ErrUnknownToken = errors.New("unknown token")
)
