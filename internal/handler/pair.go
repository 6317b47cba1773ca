package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/resolver"
	"github.com/nulln0ne/uniswap-dex/internal/service"
)

// PairHandler serves GET /pair?a=&b=.
type PairHandler struct {
	BaseHandler
	resolver *resolver.Resolver
	tokens   TokenLookup
}

func NewPairHandler(logger *slog.Logger, res *resolver.Resolver, tokens TokenLookup) *PairHandler {
	return &PairHandler{
		BaseHandler: BaseHandler{logger: logger},
		resolver:    res,
		tokens:      tokens,
	}
}

type PairRequest struct {
	A string `query:"a"`
	B string `query:"b"`
}

func (h *PairHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req PairRequest
		if err := c.Bind().Query(&req); err != nil {
			return ErrInvalidQueryParameters
		}
		ctx, cancel := requestContext()
		defer cancel()

		a, err := h.lookupToken(ctx, h.tokens, "a", req.A)
		if err != nil {
			return err
		}
		b, err := h.lookupToken(ctx, h.tokens, "b", req.B)
		if err != nil {
			return err
		}
		res, err := h.resolver.Resolve(ctx, a, b)
		if err != nil {
			return h.serviceError(err)
		}
		return c.JSON(res)
	}
}

// LiquidityHandler serves GET /liquidity/balance.
type LiquidityHandler struct {
	BaseHandler
	service *service.LiquidityService
	tokens  TokenLookup
}

func NewLiquidityHandler(logger *slog.Logger, svc *service.LiquidityService, tokens TokenLookup) *LiquidityHandler {
	return &LiquidityHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
		tokens:      tokens,
	}
}

type BalanceRequest struct {
	A      string `query:"a"`
	B      string `query:"b"`
	Side   string `query:"side"`
	Amount string `query:"amount"`
}

func (h *LiquidityHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req BalanceRequest
		if err := c.Bind().Query(&req); err != nil {
			return ErrInvalidQueryParameters
		}
		side := service.Side(req.Side)
		switch side {
		case "":
			side = service.SideA
		case service.SideA, service.SideB:
		default:
			return ErrInvalidSide
		}

		ctx, cancel := requestContext()
		defer cancel()

		a, err := h.lookupToken(ctx, h.tokens, "a", req.A)
		if err != nil {
			return err
		}
		b, err := h.lookupToken(ctx, h.tokens, "b", req.B)
		if err != nil {
			return err
		}
		bal, err := h.service.Balance(ctx, a, b, side, req.Amount)
		if err != nil {
			return h.serviceError(err)
		}
		return c.JSON(bal)
	}
}
