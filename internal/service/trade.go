package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/internal/txlog"
	"github.com/nulln0ne/uniswap-dex/pkg/uniswapv2"
)

// Call is an unsigned transaction for the wallet to sign and send.
type Call struct {
	To     common.Address `json:"to"`
	Data   hexutil.Bytes  `json:"data"`
	Value  *hexutil.Big   `json:"value"`
	Method string         `json:"method"`
}

// Approval is an approve(router, amount) call that must be mined before the
// main call.
type Approval struct {
	Token     common.Address `json:"token"`
	Symbol    string         `json:"symbol"`
	Amount    *big.Int       `json:"amount"`
	Allowance *big.Int       `json:"allowance"`
	Call      Call           `json:"call"`
}

// TxPlan is the set of calls a wallet runs, in order, to perform one action.
type TxPlan struct {
	Type          txlog.Type    `json:"type"`
	Approvals     []Approval    `json:"approvals,omitempty"`
	NeedsApproval bool          `json:"needsApproval"`
	Call          Call          `json:"call"`
	Deadline      int64         `json:"deadline"`
	TokenA        string        `json:"tokenA"`
	TokenB        string        `json:"tokenB"`
	AmountA       string        `json:"amountA"`
	AmountB       string        `json:"amountB"`
	MinA          string        `json:"minA,omitempty"`
	MinB          string        `json:"minB,omitempty"`
	Estimate      *SwapEstimate `json:"estimate,omitempty"`
}

// ApprovalError returns ErrApprovalRequired when the plan has pending
// approvals.
func (p *TxPlan) ApprovalError() error {
	if p.NeedsApproval {
		return ErrApprovalRequired
	}
	return nil
}

// TradeConfig holds the router parameters applied to built transactions.
type TradeConfig struct {
	Router               common.Address
	Wrapped              common.Address
	NativeSymbol         string
	SwapSlippageBps      uint32
	LiquiditySlippageBps uint32
	DeadlineWindow       time.Duration
}

// TradeService builds unsigned router calls. It never signs or sends.
type TradeService struct {
	BaseService
	caller    bind.ContractCaller
	cfg       TradeConfig
	router    *eth.Router
	estimates *EstimateService
	pairs     pairReader
	now       func() time.Time
}

func NewTradeService(logger *slog.Logger, caller bind.ContractCaller, estimates *EstimateService, cfg TradeConfig) *TradeService {
	return &TradeService{
		BaseService: newBase(logger, "trade"),
		caller:      caller,
		cfg:         cfg,
		router:      eth.NewRouter(cfg.Router, caller),
		estimates:   estimates,
		pairs:       pairReader{caller: caller, wrapped: cfg.Wrapped, nativeSymbol: cfg.NativeSymbol},
		now:         time.Now,
	}
}

// Simulate runs the plan's main call from account with eth_call. Plans with
// pending approvals are not simulated and return ErrApprovalRequired. A
// revert is reported as ErrWouldRevert with the message shown to users.
func (s *TradeService) Simulate(ctx context.Context, account common.Address, plan *TxPlan) error {
	if err := plan.ApprovalError(); err != nil {
		return err
	}
	to := plan.Call.To
	_, err := s.caller.CallContract(ctx, ethereum.CallMsg{
		From:  account,
		To:    &to,
		Data:  plan.Call.Data,
		Value: plan.Call.Value.ToInt(),
	}, nil)
	switch {
	case err == nil:
		return nil
	case eth.IsRevert(err):
		s.logger.Debug("simulation reverted", "method", plan.Call.Method, "err", err)
		return fmt.Errorf("%w: %s", ErrWouldRevert, txlog.FailureReason(err))
	default:
		return fmt.Errorf("simulate %s: %w", plan.Call.Method, err)
	}
}

func (s *TradeService) deadline() *big.Int {
	return big.NewInt(s.now().Add(s.cfg.DeadlineWindow).Unix())
}

// BuildSwap prepares an exact-input swap of amount from into to.
func (s *TradeService) BuildSwap(ctx context.Context, account common.Address, from, to token.Token, amount string) (*TxPlan, error) {
	if account == (common.Address{}) {
		return nil, ErrAccountRequired
	}
	if from.IsPlaceholder() || to.IsPlaceholder() {
		return nil, ErrNoLiquidity
	}
	if from.Same(to) {
		return nil, ErrSameToken
	}
	est, err := s.estimates.Estimate(ctx, from, to, amount)
	if err != nil {
		return nil, err
	}
	switch est.Status {
	case StatusOK:
	case StatusEmpty:
		return nil, ErrAmountRequired
	case StatusNoLiquidity:
		return nil, ErrNoLiquidity
	default:
		return nil, fmt.Errorf("%w: %s", ErrEstimateUnavailable, est.Error)
	}

	amountIn := est.AmountIn
	amountOutMin := uniswapv2.ApplySlippage(est.AmountOut, s.cfg.SwapSlippageBps)
	deadline := s.deadline()
	plan := &TxPlan{
		Type:     txlog.TypeSwap,
		Deadline: deadline.Int64(),
		TokenA:   from.Symbol,
		TokenB:   to.Symbol,
		AmountA:  token.FormatAmount(amountIn, from.Decimals),
		AmountB:  est.Output,
		MinB:     token.FormatAmount(amountOutMin, to.Decimals),
		Estimate: est,
	}

	switch {
	case from.Native:
		plan.Call, err = s.routerCall(amountIn, "swapExactETHForTokens", amountOutMin, est.Path, account, deadline)
	case to.Native:
		plan.Call, err = s.routerCall(nil, "swapExactTokensForETH", amountIn, amountOutMin, est.Path, account, deadline)
	default:
		plan.Call, err = s.routerCall(nil, "swapExactTokensForTokens", amountIn, amountOutMin, est.Path, account, deadline)
	}
	if err != nil {
		return nil, err
	}
	if !from.Native {
		if err := s.requireAllowance(ctx, plan, account, from.Address, from.Symbol, amountIn); err != nil {
			return nil, err
		}
	}
	s.logger.Debug("swap built", "method", plan.Call.Method, "in", amountIn.String(), "min_out", amountOutMin.String())
	return plan, nil
}

// BuildAddLiquidity prepares a deposit of amountA of a and amountB of b.
func (s *TradeService) BuildAddLiquidity(ctx context.Context, account common.Address, a, b token.Token, amountA, amountB string) (*TxPlan, error) {
	if account == (common.Address{}) {
		return nil, ErrAccountRequired
	}
	if a.IsPlaceholder() || b.IsPlaceholder() || a.Same(b) {
		return nil, ErrSameToken
	}
	rawA, err := token.ParseAmount(amountA, a.Decimals)
	if err != nil {
		return nil, err
	}
	rawB, err := token.ParseAmount(amountB, b.Decimals)
	if err != nil {
		return nil, err
	}
	if rawA.Sign() == 0 || rawB.Sign() == 0 {
		return nil, ErrAmountRequired
	}

	minA := uniswapv2.ApplySlippage(rawA, s.cfg.LiquiditySlippageBps)
	minB := uniswapv2.ApplySlippage(rawB, s.cfg.LiquiditySlippageBps)
	deadline := s.deadline()
	plan := &TxPlan{
		Type:     txlog.TypeAddLiquidity,
		Deadline: deadline.Int64(),
		TokenA:   a.Symbol,
		TokenB:   b.Symbol,
		AmountA:  token.FormatAmount(rawA, a.Decimals),
		AmountB:  token.FormatAmount(rawB, b.Decimals),
		MinA:     token.FormatAmount(minA, a.Decimals),
		MinB:     token.FormatAmount(minB, b.Decimals),
	}

	switch {
	case a.Native:
		plan.Call, err = s.routerCall(rawA, "addLiquidityETH", b.Address, rawB, minB, minA, account, deadline)
	case b.Native:
		plan.Call, err = s.routerCall(rawB, "addLiquidityETH", a.Address, rawA, minA, minB, account, deadline)
	default:
		plan.Call, err = s.routerCall(nil, "addLiquidity", a.Address, b.Address, rawA, rawB, minA, minB, account, deadline)
	}
	if err != nil {
		return nil, err
	}
	if !a.Native {
		if err := s.requireAllowance(ctx, plan, account, a.Address, a.Symbol, rawA); err != nil {
			return nil, err
		}
	}
	if !b.Native {
		if err := s.requireAllowance(ctx, plan, account, b.Address, b.Symbol, rawB); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// BuildRemoveLiquidity prepares withdrawing percent of the account's LP
// balance in pair.
func (s *TradeService) BuildRemoveLiquidity(ctx context.Context, account, pairAddr common.Address, percent int) (*TxPlan, error) {
	if account == (common.Address{}) {
		return nil, ErrAccountRequired
	}
	if percent < 1 || percent > 100 {
		return nil, ErrInvalidPercent
	}

	pair := eth.NewPair(pairAddr, s.caller)
	balance, err := pair.BalanceOf(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("LP balance: %w", err)
	}
	if balance.Sign() == 0 {
		return nil, ErrNoPosition
	}
	pos, err := s.pairs.describe(ctx, pair, balance)
	if err != nil {
		return nil, fmt.Errorf("read pair: %w", err)
	}
	if pos.TotalSupply.Sign() == 0 {
		return nil, ErrEmptyReserves
	}

	pct := big.NewInt(int64(percent))
	hundred := big.NewInt(100)
	liquidity := uniswapv2.Portion(balance, pct, hundred)
	min0 := uniswapv2.ApplySlippage(uniswapv2.Portion(pos.Amount0, pct, hundred), s.cfg.LiquiditySlippageBps)
	min1 := uniswapv2.ApplySlippage(uniswapv2.Portion(pos.Amount1, pct, hundred), s.cfg.LiquiditySlippageBps)
	deadline := s.deadline()

	plan := &TxPlan{
		Type:     txlog.TypeRemoveLiquidity,
		Deadline: deadline.Int64(),
		TokenA:   pos.Symbol0,
		TokenB:   pos.Symbol1,
		AmountA:  token.FormatAmount(uniswapv2.Portion(pos.Amount0, pct, hundred), pos.Decimals0),
		AmountB:  token.FormatAmount(uniswapv2.Portion(pos.Amount1, pct, hundred), pos.Decimals1),
		MinA:     token.FormatAmount(min0, pos.Decimals0),
		MinB:     token.FormatAmount(min1, pos.Decimals1),
	}

	switch s.cfg.Wrapped {
	case pos.Token0:
		plan.Call, err = s.routerCall(nil, "removeLiquidityETH", pos.Token1, liquidity, min1, min0, account, deadline)
	case pos.Token1:
		plan.Call, err = s.routerCall(nil, "removeLiquidityETH", pos.Token0, liquidity, min0, min1, account, deadline)
	default:
		plan.Call, err = s.routerCall(nil, "removeLiquidity", pos.Token0, pos.Token1, liquidity, min0, min1, account, deadline)
	}
	if err != nil {
		return nil, err
	}

	allowance, err := pair.Allowance(ctx, account, s.cfg.Router)
	if err != nil {
		return nil, fmt.Errorf("LP allowance: %w", err)
	}
	if allowance.Cmp(liquidity) < 0 {
		if err := s.addApproval(plan, pairAddr, pos.Symbol0+"-"+pos.Symbol1+" LP", liquidity, allowance); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (s *TradeService) routerCall(value *big.Int, method string, args ...any) (Call, error) {
	data, err := s.router.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return Call{
		To:     s.router.Address(),
		Data:   data,
		Value:  (*hexutil.Big)(new(big.Int).Set(value)),
		Method: method,
	}, nil
}

// requireAllowance adds an approval step when the router may not spend amount
// of tok on behalf of account.
func (s *TradeService) requireAllowance(ctx context.Context, plan *TxPlan, account, tok common.Address, symbol string, amount *big.Int) error {
	allowance, err := eth.NewERC20(tok, s.caller).Allowance(ctx, account, s.cfg.Router)
	if err != nil {
		return fmt.Errorf("allowance of %s: %w", tok.Hex(), err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	return s.addApproval(plan, tok, symbol, amount, allowance)
}

func (s *TradeService) addApproval(plan *TxPlan, tok common.Address, symbol string, amount, allowance *big.Int) error {
	data, err := eth.PackApprove(s.cfg.Router, amount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	plan.NeedsApproval = true
	plan.Approvals = append(plan.Approvals, Approval{
		Token:     tok,
		Symbol:    symbol,
		Amount:    amount,
		Allowance: allowance,
		Call: Call{
			To:     tok,
			Data:   data,
			Value:  (*hexutil.Big)(new(big.Int)),
			Method: "approve",
		},
	})
	s.logger.Debug("approval required", "token", tok.Hex(), "amount", amount.String(), "allowance", allowance.String())
	return nil
}
