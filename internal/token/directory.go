package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
)

// Directory resolves API token identifiers (native symbol or hex address) to
// Token values, consulting the token list first and the token contract second.
type Directory struct {
	logger *slog.Logger
	native Token
	lister *Lister
	caller bind.ContractCaller

	mu    sync.RWMutex
	known map[common.Address]Token
}

func NewDirectory(logger *slog.Logger, native Token, lister *Lister, caller bind.ContractCaller) *Directory {
	return &Directory{
		logger: logger,
		native: native,
		lister: lister,
		caller: caller,
		known:  make(map[common.Address]Token),
	}
}

func (d *Directory) Native() Token { return d.native }

// Lookup returns the token identified by id. Only the already loaded token
// list is consulted, never the feed. Unknown contracts are described
// from their symbol() and decimals(), defaulting to 18 decimals when the
// contract does not answer.
func (d *Directory) Lookup(ctx context.Context, id string) (Token, error) {
	id = strings.TrimSpace(id)
	if strings.EqualFold(id, d.native.Symbol) {
		return d.native, nil
	}
	if !common.IsHexAddress(id) {
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownToken, id)
	}
	addr := common.HexToAddress(id)
	if addr == (common.Address{}) {
		return Token{}, nil
	}

	d.mu.RLock()
	t, ok := d.known[addr]
	d.mu.RUnlock()
	if ok {
		return t, nil
	}

	if d.lister != nil {
		if t, ok := d.lister.Cached().Find(addr); ok {
			d.remember(t)
			return t, nil
		}
	}

	t, settled := d.describe(ctx, addr)
	if settled {
		d.remember(t)
	}
	return t, nil
}

// describe reads token metadata from the contract. settled is false when the
// decimals lookup failed for a transient reason and should be retried.
func (d *Directory) describe(ctx context.Context, addr common.Address) (t Token, settled bool) {
	t = Token{ChainID: d.native.ChainID, Address: addr, Decimals: DefaultDecimals}
	erc := eth.NewERC20(addr, d.caller)
	dec, err := erc.Decimals(ctx)
	switch {
	case err == nil:
		t.Decimals = dec
		settled = true
	case eth.IsRevert(err), errors.Is(err, bind.ErrNoCode):
		d.logger.Debug("decimals() unavailable, assuming 18", "token", addr.Hex(), "err", err)
		settled = true
	default:
		d.logger.Warn("decimals() failed, assuming 18", "token", addr.Hex(), "err", err)
	}
	if sym, err := erc.Symbol(ctx); err == nil {
		t.Symbol = sym
	}
	if name, err := erc.Name(ctx); err == nil {
		t.Name = name
	}
	return t, settled
}

func (d *Directory) remember(t Token) {
	d.mu.Lock()
	d.known[t.Address] = t
	d.mu.Unlock()
}
