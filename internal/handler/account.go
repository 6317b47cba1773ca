package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/network"
	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/internal/wallet"
)

// TokensHandler serves GET /tokens.
type TokensHandler struct {
	BaseHandler
	lister *token.Lister
}

func NewTokensHandler(logger *slog.Logger, lister *token.Lister) *TokensHandler {
	return &TokensHandler{BaseHandler: BaseHandler{logger: logger}, lister: lister}
}

func (h *TokensHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := requestContext()
		defer cancel()
		return c.JSON(h.lister.Fetch(ctx))
	}
}

// NetworkHandler serves GET /network.
type NetworkHandler struct {
	BaseHandler
	network network.Network
}

func NewNetworkHandler(logger *slog.Logger, net network.Network) *NetworkHandler {
	return &NetworkHandler{BaseHandler: BaseHandler{logger: logger}, network: net}
}

// Handle reports the active network. With chain_id (decimal or 0x-hex, as
// a wallet reports it) the response also says whether that chain is the
// active one.
func (h *NetworkHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		resp := fiber.Map{
			"network":    h.network,
			"chainIdHex": h.network.ChainIDHex(),
		}
		if raw := c.Query("chain_id"); raw != "" {
			id, err := network.ParseChainID(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			resp["walletChainId"] = id
			resp["correctChain"] = h.network.IsCorrectChain(id)
		}
		return c.JSON(resp)
	}
}

// PositionsHandler serves GET /positions?account=.
type PositionsHandler struct {
	BaseHandler
	service *service.PositionService
}

func NewPositionsHandler(logger *slog.Logger, svc *service.PositionService) *PositionsHandler {
	return &PositionsHandler{BaseHandler: BaseHandler{logger: logger}, service: svc}
}

func (h *PositionsHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		account, err := parseAddress("account", c.Query("account"))
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		positions, err := h.service.Positions(ctx, account)
		if err != nil {
			return h.serviceError(err)
		}
		return c.JSON(fiber.Map{"account": account, "positions": positions})
	}
}

// BalanceHandler serves GET /balance?account=&token=.
type BalanceHandler struct {
	BaseHandler
	backend eth.Backend
	tokens  TokenLookup
}

func NewBalanceHandler(logger *slog.Logger, backend eth.Backend, tokens TokenLookup) *BalanceHandler {
	return &BalanceHandler{BaseHandler: BaseHandler{logger: logger}, backend: backend, tokens: tokens}
}

func (h *BalanceHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		account, err := parseAddress("account", c.Query("account"))
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		tok, err := h.lookupToken(ctx, h.tokens, "token", c.Query("token"))
		if err != nil {
			return err
		}
		holding, err := wallet.ReadBalance(ctx, h.logger, h.backend, account, tok)
		if err != nil {
			h.logger.Warn("balance read failed", "account", account.Hex(), "token", tok.ID(), "err", err)
			return ErrUpstreamUnavailable
		}
		return c.JSON(holding)
	}
}
