package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/txlog"
)

// HistoryHandler exposes the transaction journal.
type HistoryHandler struct {
	BaseHandler
	journal  *txlog.Journal
	receipts txlog.ReceiptSource
}

func NewHistoryHandler(logger *slog.Logger, journal *txlog.Journal, receipts txlog.ReceiptSource) *HistoryHandler {
	return &HistoryHandler{
		BaseHandler: BaseHandler{logger: logger},
		journal:     journal,
		receipts:    receipts,
	}
}

type RecordRequest struct {
	Hash    string        `json:"hash"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Value   string        `json:"value"`
	Data    hexutil.Bytes `json:"data"`
	TokenA  string        `json:"tokenA"`
	TokenB  string        `json:"tokenB"`
	AmountA string        `json:"amountA"`
	AmountB string        `json:"amountB"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func parseHash(raw string) (common.Hash, error) {
	raw = strings.TrimSpace(raw)
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fiber.NewError(fiber.StatusBadRequest, "invalid transaction hash")
	}
	return common.BytesToHash(b), nil
}

func parseType(raw string) (txlog.Type, error) {
	switch t := txlog.Type(raw); t {
	case "", txlog.TypeSwap, txlog.TypeAddLiquidity, txlog.TypeRemoveLiquidity, txlog.TypeApprove, txlog.TypeUnknown:
		return t, nil
	}
	return "", NewInvalidType(raw)
}

// List serves GET /history?account=&type=.
func (h *HistoryHandler) List() fiber.Handler {
	return func(c fiber.Ctx) error {
		account, err := parseOptionalAddress("account", c.Query("account"))
		if err != nil {
			return err
		}
		typ, err := parseType(c.Query("type"))
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()

		entries, err := h.journal.List(ctx, account, typ)
		if err != nil {
			return h.serviceError(err)
		}
		return c.JSON(fiber.Map{"transactions": entries})
	}
}

// Record serves POST /history. The type and method name come from the call
// data.
func (h *HistoryHandler) Record() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req RecordRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		hash, err := parseHash(req.Hash)
		if err != nil {
			return err
		}
		from, err := parseAddress("from", req.From)
		if err != nil {
			return err
		}
		to, err := parseOptionalAddress("to", req.To)
		if err != nil {
			return err
		}
		typ, method := txlog.Identify(req.Data)
		value := req.Value
		if value == "" {
			value = "0"
		}
		entry := txlog.Entry{
			Hash:       hash,
			From:       from,
			To:         to,
			Value:      value,
			Type:       typ,
			TokenA:     req.TokenA,
			TokenB:     req.TokenB,
			AmountA:    req.AmountA,
			AmountB:    req.AmountB,
			MethodName: method,
		}

		ctx, cancel := requestContext()
		defer cancel()
		if err := h.journal.Record(ctx, entry); err != nil {
			return h.serviceError(err)
		}
		h.logger.Info("transaction journaled", "hash", hash.Hex(), "type", string(typ))
		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// SetStatus serves PATCH /history/:hash for wallet-reported outcomes.
func (h *HistoryHandler) SetStatus() fiber.Handler {
	return func(c fiber.Ctx) error {
		hash, err := parseHash(c.Params("hash"))
		if err != nil {
			return err
		}
		var req StatusRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		status := txlog.Status(req.Status)
		switch status {
		case txlog.StatusPending, txlog.StatusSuccess, txlog.StatusFailed:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid status "+req.Status)
		}
		reason := ""
		if status == txlog.StatusFailed {
			reason = txlog.FailureMessage(req.Error)
		}

		ctx, cancel := requestContext()
		defer cancel()
		if err := h.journal.SetStatus(ctx, hash, status, reason); err != nil {
			return h.serviceError(err)
		}
		return c.JSON(fiber.Map{"hash": hash, "status": status, "reason": reason})
	}
}

// Reconcile serves POST /history/reconcile.
func (h *HistoryHandler) Reconcile() fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := requestContext()
		defer cancel()
		n, err := h.journal.Reconcile(ctx, h.receipts)
		if err != nil {
			if errors.Is(err, ctx.Err()) {
				return ErrUpstreamUnavailable
			}
			return h.serviceError(err)
		}
		return c.JSON(fiber.Map{"updated": n})
	}
}
