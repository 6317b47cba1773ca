package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/service"
)

// TxHandler builds unsigned router transactions.
type TxHandler struct {
	BaseHandler
	service *service.TradeService
	tokens  TokenLookup
}

func NewTxHandler(logger *slog.Logger, svc *service.TradeService, tokens TokenLookup) *TxHandler {
	return &TxHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
		tokens:      tokens,
	}
}

type SwapRequest struct {
	Account string `json:"account"`
	Src     string `json:"src"`
	Dst     string `json:"dst"`
	Amount  string `json:"amount"`
}

type AddLiquidityRequest struct {
	Account string `json:"account"`
	A       string `json:"a"`
	B       string `json:"b"`
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
}

type RemoveLiquidityRequest struct {
	Account string `json:"account"`
	Pair    string `json:"pair"`
	Percent int    `json:"percent"`
}

// Swap serves POST /tx/swap.
func (h *TxHandler) Swap() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req SwapRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		account, err := parseAddress("account", req.Account)
		if err != nil {
			return err
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
		plan, err := h.service.BuildSwap(ctx, account, src, dst, req.Amount)
		if err != nil {
			return h.serviceError(err)
		}
		h.logger.Info("swap built", "account", account.Hex(), "method", plan.Call.Method, "approvals", len(plan.Approvals))
		return c.JSON(plan)
	}
}

// AddLiquidity serves POST /tx/add-liquidity.
func (h *TxHandler) AddLiquidity() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req AddLiquidityRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		account, err := parseAddress("account", req.Account)
		if err != nil {
			return err
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
		plan, err := h.service.BuildAddLiquidity(ctx, account, a, b, req.AmountA, req.AmountB)
		if err != nil {
			return h.serviceError(err)
		}
		return c.JSON(plan)
	}
}

// RemoveLiquidity serves POST /tx/remove-liquidity.
func (h *TxHandler) RemoveLiquidity() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req RemoveLiquidityRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		account, err := parseAddress("account", req.Account)
		if err != nil {
			return err
		}
		pair, err := parseAddress("pair", req.Pair)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		plan, err := h.service.BuildRemoveLiquidity(ctx, account, pair, req.Percent)
		if err != nil {
			return h.serviceError(err)
		}
		return c.JSON(plan)
	}
}
