// Package handler defines HTTP request handlers and related utilities.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/token"
)

// requestTimeout bounds the chain calls made for one request.
const requestTimeout = 15 * time.Second

// BaseHandler provides common dependencies for HTTP handlers.
type BaseHandler struct {
	logger *slog.Logger
}

// TokenLookup resolves a token parameter: a hex address or the native symbol.
// *token.Directory satisfies it.
type TokenLookup interface {
	Lookup(ctx context.Context, id string) (token.Token, error)
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func (h BaseHandler) lookupToken(ctx context.Context, tokens TokenLookup, field, id string) (token.Token, error) {
	if strings.TrimSpace(id) == "" {
		return token.Token{}, NewAddressRequired(field)
	}
	t, err := tokens.Lookup(ctx, id)
	if errors.Is(err, token.ErrUnknownToken) {
		return token.Token{}, NewUnknownToken(field)
	}
	if err != nil {
		return token.Token{}, h.serviceError(err)
	}
	return t, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, NewAddressRequired(field)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, NewInvalidAddress(field)
	}
	return common.HexToAddress(raw), nil
}

// parseOptionalAddress is parseAddress for filters: empty input is the zero
// address.
func parseOptionalAddress(field, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, raw)
}
