// Package wallet tracks the connected account and chain of a wallet session
// and reads its balances. Signing stays with the wallet itself.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/network"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

// State is a snapshot of a session.
type State struct {
	Connected    bool           `json:"connected"`
	Account      common.Address `json:"account"`
	ChainID      uint64         `json:"chainId"`
	CorrectChain bool           `json:"correctChain"`
}

// Session is the provider/signer context of one user. The zero value is not
// usable; construct with NewSession.
type Session struct {
	logger  *slog.Logger
	backend eth.Backend
	network network.Network

	mu        sync.RWMutex
	connected bool
	account   common.Address
	chainID   uint64
}

func NewSession(logger *slog.Logger, backend eth.Backend, net network.Network) *Session {
	return &Session{logger: logger, backend: backend, network: net}
}

// Connect binds account to the session and reads the chain the backend is
// on. Being on the wrong chain is not an error; it is reported through
// State.CorrectChain and Ready.
func (s *Session) Connect(ctx context.Context, account common.Address) (State, error) {
	if account == (common.Address{}) {
		return State{}, ErrNoAccount
	}
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read chain id: %w", err)
	}

	s.mu.Lock()
	s.connected = true
	s.account = account
	s.chainID = id.Uint64()
	st := s.state()
	s.mu.Unlock()

	if !st.CorrectChain {
		s.logger.Warn("wrong network", "chain_id", st.ChainID, "want", s.network.ChainID, "network", s.network.Name)
	}
	s.logger.Info("wallet connected", "account", account.Hex(), "chain_id", st.ChainID)
	return st, nil
}

// SwitchAccount follows an account change in the wallet. The zero address
// means the wallet exposes no account any more and disconnects the session.
func (s *Session) SwitchAccount(account common.Address) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return State{}, ErrNotConnected
	}
	if account == (common.Address{}) {
		s.reset()
		return s.state(), nil
	}
	s.account = account
	return s.state(), nil
}

// SwitchChain follows a chain change in the wallet.
func (s *Session) SwitchChain(chainID uint64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainID = chainID
	st := s.state()
	if s.connected && !st.CorrectChain {
		s.logger.Warn("wrong network", "chain_id", chainID, "want", s.network.ChainID)
	}
	return st
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.connected = false
	s.account = common.Address{}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state()
}

func (s *Session) state() State {
	return State{
		Connected:    s.connected,
		Account:      s.account,
		ChainID:      s.chainID,
		CorrectChain: s.network.IsCorrectChain(s.chainID),
	}
}

// Account returns the connected account.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.connected
}

// Ready reports whether the session may send transactions.
func (s *Session) Ready() error {
	st := s.State()
	if !st.Connected {
		return ErrNotConnected
	}
	if !st.CorrectChain {
		return fmt.Errorf("%w: on chain %d, switch to %s (%d)", ErrWrongNetwork, st.ChainID, s.network.Name, s.network.ChainID)
	}
	return nil
}

// Balance returns the connected account's holding of tok.
func (s *Session) Balance(ctx context.Context, tok token.Token) (Holding, error) {
	account, ok := s.Account()
	if !ok {
		return Holding{}, ErrNotConnected
	}
	return ReadBalance(ctx, s.logger, s.backend, account, tok)
}

// Holding is an account's balance of one token.
type Holding struct {
	Token    token.Token `json:"token"`
	Raw      *big.Int    `json:"raw"`
	Amount   string      `json:"amount"`
	Decimals uint8       `json:"decimals"`
}

// ReadBalance reads account's balance of tok. An address without contract
// code holds nothing, and a token whose decimals() fails is read with 18
// decimals.
func ReadBalance(ctx context.Context, logger *slog.Logger, backend eth.Backend, account common.Address, tok token.Token) (Holding, error) {
	h := Holding{Token: tok, Raw: new(big.Int), Decimals: tok.Decimals}

	if tok.Native {
		bal, err := backend.BalanceAt(ctx, account, nil)
		if err != nil {
			return Holding{}, fmt.Errorf("native balance: %w", err)
		}
		h.Raw = bal
		h.Amount = token.FormatAmount(bal, h.Decimals)
		return h, nil
	}

	code, err := backend.CodeAt(ctx, tok.Address, nil)
	if err != nil {
		return Holding{}, fmt.Errorf("code at %s: %w", tok.Address.Hex(), err)
	}
	if len(code) == 0 {
		logger.Debug("no contract at token address", "token", tok.Address.Hex())
		h.Amount = "0"
		return h, nil
	}

	erc := eth.NewERC20(tok.Address, backend)
	bal, err := erc.BalanceOf(ctx, account)
	switch {
	case err != nil && eth.IsRevert(err):
		logger.Debug("balanceOf reverted", "token", tok.Address.Hex(), "err", err)
		h.Amount = "0"
		return h, nil
	case err != nil:
		return Holding{}, fmt.Errorf("balanceOf: %w", err)
	}
	decimals, err := erc.Decimals(ctx)
	if err != nil {
		logger.Debug("decimals failed, assuming default", "token", tok.Address.Hex(), "err", err)
		decimals = token.DefaultDecimals
	}
	h.Raw = bal
	h.Decimals = decimals
	h.Amount = token.FormatAmount(bal, decimals)
	return h, nil
}
