package wallet

import "errors"

var (
	ErrNoAccount    = errors.New("wallet exposed no account")
	ErrNotConnected = errors.New("wallet not connected")
	ErrWrongNetwork = errors.New("wallet is on the wrong network")
)
