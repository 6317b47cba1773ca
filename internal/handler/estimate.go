package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

type EstimateHandler struct {
	BaseHandler
	service *service.EstimateService
	tokens  TokenLookup
}

func NewEstimateHandler(logger *slog.Logger, svc *service.EstimateService, tokens TokenLookup) *EstimateHandler {
	return &EstimateHandler{
		BaseHandler: BaseHandler{
			logger: logger,
		},
		service: svc,
		tokens:  tokens,
	}
}

type EstimateRequest struct {
	Src      string `query:"src" json:"src"`
	Dst      string `query:"dst" json:"dst"`
	AmountIn string `query:"src_amount" json:"amount_in"`
}

// Handle serves GET /estimate. Empty amounts, same-token pairs and missing
// liquidity are reported in the body's status, not as HTTP errors.
func (h *EstimateHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req EstimateRequest
		if err := c.Bind().Query(&req); err != nil {
			h.logger.Debug("failed to bind query parameters", "err", err)
			return ErrInvalidQueryParameters
		}

		ctx, cancel := requestContext()
		defer cancel()

		src, err := h.lookupToken(ctx, h.tokens, "src", req.Src)
		if err != nil {
			return err
		}
		dst, err := h.lookupToken(ctx, h.tokens, "dst", req.Dst)
		if err != nil {
			return err
		}

		est, err := h.service.Estimate(ctx, src, dst, req.AmountIn)
		if errors.Is(err, token.ErrInvalidAmount) {
			return NewInvalidAmount("src_amount", err)
		}
		if err != nil {
			h.logger.Error("service estimate failed", "err", err)
			return ErrEstimationFailedInternal
		}

		h.logger.Debug("estimate computed", "src", src.ID(), "dst", dst.ID(), "in", req.AmountIn, "status", string(est.Status), "out", est.Output)
		return c.JSON(est)
	}
}
