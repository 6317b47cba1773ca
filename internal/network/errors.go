package network

import "errors"

var ErrInvalidChainID = errors.New("invalid chain id")
