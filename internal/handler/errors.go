package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/resolver"
	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/internal/txlog"
)

// ErrInvalidQueryParameters indicates that the request query string could not
// be parsed into the expected structure.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// ErrInvalidBody indicates that the JSON request body could not be decoded.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrSameTokenBadRequest maps a same-token validation failure to a 400 error.
var ErrSameTokenBadRequest = fiber.NewError(fiber.StatusBadRequest, "src and dst tokens cannot be the same")

// ErrAmountNonPositive is returned when the amount is zero or negative.
var ErrAmountNonPositive = fiber.NewError(fiber.StatusBadRequest, "amount must be greater than zero")

var ErrInvalidPercent = fiber.NewError(fiber.StatusBadRequest, "percent must be between 1 and 100")

var ErrInvalidSide = fiber.NewError(fiber.StatusBadRequest, "side must be a or b")

// ErrNoLiquidityConflict is returned when a trade is built against a pool
// without liquidity.
var ErrNoLiquidityConflict = fiber.NewError(fiber.StatusConflict, "pool has no liquidity")

var ErrNoPositionNotFound = fiber.NewError(fiber.StatusNotFound, "account has no liquidity in pair")

var ErrTransactionNotFound = fiber.NewError(fiber.StatusNotFound, "transaction not found")

// ErrUpstreamUnavailable signals that the chain node could not be reached.
var ErrUpstreamUnavailable = fiber.NewError(fiber.StatusBadGateway, "chain node unavailable")

// ErrEstimationFailedInternal signals a generic server-side estimation error.
var ErrEstimationFailedInternal = fiber.NewError(fiber.StatusInternalServerError, "estimation failed")

var ErrInternal = fiber.NewError(fiber.StatusInternalServerError, "internal error")

// NewInvalidAmount wraps an amount parsing error into a 400 Bad Request with
// a descriptive message.
func NewInvalidAmount(field string, err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+": "+err.Error())
}

// NewAddressRequired returns a 400 Bad Request for a missing address field.
func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

// NewInvalidAddress returns a 400 Bad Request for an invalid address format.
func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

func NewUnknownToken(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "unknown "+field+" token: expected an address or the native symbol")
}

func NewInvalidType(value string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid transaction type "+value)
}

// serviceError maps errors from the service layer onto HTTP errors. Anything
// unrecognised is logged and reported as a 500.
func (h BaseHandler) serviceError(err error) error {
	switch {
	case errors.Is(err, token.ErrInvalidAmount):
		return NewInvalidAmount("amount", err)
	case errors.Is(err, service.ErrSameToken):
		return ErrSameTokenBadRequest
	case errors.Is(err, service.ErrAccountRequired):
		return NewAddressRequired("account")
	case errors.Is(err, service.ErrAmountRequired):
		return ErrAmountNonPositive
	case errors.Is(err, service.ErrInvalidPercent):
		return ErrInvalidPercent
	case errors.Is(err, service.ErrNoLiquidity), errors.Is(err, service.ErrEmptyReserves):
		return ErrNoLiquidityConflict
	case errors.Is(err, service.ErrNoPosition):
		return ErrNoPositionNotFound
	case errors.Is(err, txlog.ErrNotFound):
		return ErrTransactionNotFound
	case errors.Is(err, resolver.ErrLookupFailed), errors.Is(err, service.ErrEstimateUnavailable):
		h.logger.Warn("chain lookup failed", "err", err)
		return ErrUpstreamUnavailable
	}
	h.logger.Error("request failed", "err", err)
	return ErrInternal
}
