package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/nulln0ne/uniswap-dex/internal/live"
	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/internal/txlog"
)

func parseAddress(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func (c *cli) tokens(ctx context.Context, ids ...string) ([]token.Token, error) {
	out := make([]token.Token, len(ids))
	for i, id := range ids {
		t, err := c.app.Tokens.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func symbolOf(t token.Token) string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.ID()
}

func printEstimate(w io.Writer, est *service.SwapEstimate) {
	switch est.Status {
	case service.StatusOK, service.StatusSameToken:
		fmt.Fprintf(w, "%s %s -> %s %s", token.FormatAmount(est.AmountIn, est.From.Decimals), symbolOf(est.From), est.Output, symbolOf(est.To))
		if est.PriceImpact != "" {
			fmt.Fprintf(w, " (price impact %s%%)", est.PriceImpact)
		}
		fmt.Fprintln(w)
	case service.StatusEmpty:
		fmt.Fprintln(w, "enter an amount")
	case service.StatusNoLiquidity:
		fmt.Fprintln(w, "no liquidity for this pair")
	default:
		fmt.Fprintf(w, "cannot estimate: %s\n", est.Error)
	}
}

// GetCmdQuote returns the one-shot swap quote command.
func GetCmdQuote(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [src] [dst] [amount]",
		Short: "Quote an exact-input swap",
		Long: `Quote swapping amount of src into dst. Tokens are hex addresses or the
native symbol. Direct pairs are computed from reserves; other routes go
through the wrapped native token.

Example:
  $ dexctl quote MON 0x5d876d73f4441d5f2438b1a3e2a51771b337f27a 0.25`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			toks, err := c.tokens(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			est, err := c.app.Estimates.Estimate(ctx, toks[0], toks[1], args[2])
			if err != nil {
				return err
			}
			return render(cmd, est, func() { printEstimate(cmd.OutOrStdout(), est) })
		},
	}
}

// GetCmdWatch returns the debounced estimate command reading amounts from
// stdin.
func GetCmdWatch(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [src] [dst]",
		Short: "Re-estimate as amounts are typed on stdin",
		Long: `Read one amount per line from stdin and print an estimate once input has
been quiet for the debounce period (DEBOUNCE). Superseded requests are
cancelled and never printed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			toks, err := c.tokens(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			surface := live.New(c.app.Logger, live.FromService(c.app.Estimates), live.WithDelay(c.app.Config.Debounce))
			defer surface.Close()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- strings.TrimSpace(scanner.Text()):
					case <-ctx.Done():
						return
					}
				}
			}()

			w := cmd.OutOrStdout()
			var (
				last    string
				pending bool
				settle  <-chan time.Time
			)
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						if !pending {
							return nil
						}
						lines = nil
						settle = time.After(c.app.Config.Debounce + 15*time.Second)
						continue
					}
					last, pending = line, true
					surface.Update(live.Input{From: toks[0], To: toks[1], Amount: line})
				case r := <-surface.Results():
					if r.Err != nil {
						fmt.Fprintf(w, "%s: %v\n", r.Input.Amount, r.Err)
					} else if err := render(cmd, r.Estimate, func() { printEstimate(w, r.Estimate) }); err != nil {
						return err
					}
					if r.Input.Amount == last {
						pending = false
						if lines == nil {
							return nil
						}
					}
				case <-settle:
					return fmt.Errorf("timed out waiting for the last estimate")
				}
			}
		},
	}
}

// GetCmdPair returns the pair resolution command.
func GetCmdPair(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pair [a] [b]",
		Short: "Resolve the pair of two tokens and show its reserves",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			toks, err := c.tokens(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			res, err := c.app.Resolver.Resolve(ctx, toks[0], toks[1])
			if err != nil {
				return err
			}
			return render(cmd, res, func() {
				w := cmd.OutOrStdout()
				if !res.Exists {
					fmt.Fprintf(w, "no pair (%s)\n", res.Reason)
					return
				}
				in, out, _ := res.ReservesFor(toks[0].LookupAddress(c.app.Resolver.Wrapped()))
				fmt.Fprintf(w, "Pair: %s\n", res.Pair.Hex())
				fmt.Fprintf(w, "  %s\n", c.app.Config.Network.AddressLink(res.Pair.Hex()))
				fmt.Fprintf(w, "%s: %s\n", symbolOf(toks[0]), token.FormatAmount(in, toks[0].Decimals))
				fmt.Fprintf(w, "%s: %s\n", symbolOf(toks[1]), token.FormatAmount(out, toks[1].Decimals))
				fmt.Fprintf(w, "Last update: %d\n", res.BlockTimestampLast)
			})
		},
	}
}

// GetCmdTokens returns the token list command.
func GetCmdTokens(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "List the tokens offered for the configured chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := c.app.Lister.Fetch(cmd.Context())
			return render(cmd, list, func() {
				w := cmd.OutOrStdout()
				if list.Fallback {
					fmt.Fprintln(w, "token list unavailable, showing built-in tokens")
				}
				for _, t := range list.Tokens {
					fmt.Fprintf(w, "%-8s %-42s %2d  %s\n", t.Symbol, t.ID(), t.Decimals, t.Name)
				}
			})
		},
	}
}

// GetCmdPositions returns the liquidity positions command.
func GetCmdPositions(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "positions [account]",
		Short: "Show an account's liquidity positions",
		Long: `Show the liquidity positions of account, or of the --account wallet
when no account is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account common.Address
			if len(args) == 1 {
				var err error
				if account, err = parseAddress("account", args[0]); err != nil {
					return err
				}
			} else {
				session, err := c.connect(cmd)
				if err != nil {
					return err
				}
				account, _ = session.Account()
			}
			positions, err := c.app.Positions.Positions(cmd.Context(), account)
			if err != nil {
				return err
			}
			net := c.app.Config.Network
			return render(cmd, positions, func() {
				w := cmd.OutOrStdout()
				if len(positions) == 0 {
					fmt.Fprintln(w, "no liquidity positions")
					return
				}
				for _, p := range positions {
					fmt.Fprintf(w, "%s/%s  %s\n", p.Symbol0, p.Symbol1, p.Pair.Hex())
					fmt.Fprintf(w, "  LP tokens: %s (%s%% of pool)\n", p.LPBalance, p.Share)
					fmt.Fprintf(w, "  Pooled %s: %s\n", p.Symbol0, p.Pooled0)
					fmt.Fprintf(w, "  Pooled %s: %s\n", p.Symbol1, p.Pooled1)
					fmt.Fprintf(w, "  %s\n", net.AddressLink(p.Pair.Hex()))
				}
			})
		},
	}
}

// GetCmdBalance returns the token balance command.
func GetCmdBalance(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [token]",
		Short: "Show the wallet's balance of a token",
		Long: `Show the --account wallet's balance of token. A wallet on another chain
than the configured one is reported but still read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := c.connect(cmd)
			if err != nil {
				return err
			}
			if err := session.Ready(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			toks, err := c.tokens(ctx, args[0])
			if err != nil {
				return err
			}
			holding, err := session.Balance(ctx, toks[0])
			if err != nil {
				return err
			}
			return render(cmd, holding, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", holding.Amount, symbolOf(toks[0]))
			})
		},
	}
}

// GetCmdHistory returns the transaction journal command.
func GetCmdHistory(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled transactions",
		Long: `Show the local transaction journal, newest first. With --reconcile,
pending transactions are first checked against their receipts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var account common.Address
			if raw, _ := cmd.Flags().GetString("account"); raw != "" {
				var err error
				if account, err = parseAddress("account", raw); err != nil {
					return err
				}
			}
			typ, _ := cmd.Flags().GetString("type")
			if reconcile, _ := cmd.Flags().GetBool("reconcile"); reconcile {
				n, err := c.app.Journal.Reconcile(ctx, c.app.Client)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d transaction(s) updated\n", n)
			}
			entries, err := c.app.Journal.List(ctx, account, txlog.Type(typ))
			if err != nil {
				return err
			}
			net := c.app.Config.Network
			return render(cmd, entries, func() {
				w := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(w, "no transactions")
					return
				}
				for _, e := range entries {
					when := time.UnixMilli(e.Timestamp).Format(time.DateTime)
					fmt.Fprintf(w, "%s  %-16s %-8s %s %s -> %s %s\n", when, e.Type, e.Status, e.AmountA, e.TokenA, e.AmountB, e.TokenB)
					fmt.Fprintf(w, "  %s\n", net.TxLink(e.Hash.Hex()))
					if e.Reason != "" {
						fmt.Fprintf(w, "  %s\n", e.Reason)
					}
				}
			})
		},
	}
	cmd.Flags().String("account", "", "only transactions sent from this account")
	cmd.Flags().String("type", "", "only transactions of this type (swap, add_liquidity, remove_liquidity, approve)")
	cmd.Flags().Bool("reconcile", false, "update pending transactions from their receipts first")
	return cmd
}

// trade connects the wallet, requires it to be on the configured chain, and
// renders the plan built by build after a dry run.
func (c *cli) trade(cmd *cobra.Command, build func(ctx context.Context, account common.Address) (*service.TxPlan, error)) error {
	ctx := cmd.Context()
	session, err := c.connect(cmd)
	if err != nil {
		return err
	}
	if err := session.Ready(); err != nil {
		return err
	}
	account, _ := session.Account()
	plan, err := build(ctx, account)
	if err != nil {
		return err
	}

	simulation := "ok"
	switch err := c.app.Trade.Simulate(ctx, account, plan); {
	case err == nil:
	case errors.Is(err, service.ErrApprovalRequired):
		simulation = "skipped until approved"
	case errors.Is(err, service.ErrWouldRevert):
		simulation = err.Error()
	default:
		return err
	}
	return render(cmd, plan, func() { printPlan(cmd.OutOrStdout(), plan, simulation) })
}

func printPlan(w io.Writer, plan *service.TxPlan, simulation string) {
	fmt.Fprintf(w, "%s: %s %s + %s %s\n", plan.Type, plan.AmountA, plan.TokenA, plan.AmountB, plan.TokenB)
	if plan.ApprovalError() != nil {
		fmt.Fprintln(w, "approvals to send first:")
		for _, a := range plan.Approvals {
			fmt.Fprintf(w, "  approve %s %s\n    to: %s\n    data: %s\n", a.Symbol, a.Amount, a.Call.To.Hex(), a.Call.Data)
		}
	}
	fmt.Fprintf(w, "%s\n  to: %s\n  value: %s\n  data: %s\n", plan.Call.Method, plan.Call.To.Hex(), plan.Call.Value.ToInt(), plan.Call.Data)
	fmt.Fprintf(w, "deadline: %s\n", time.Unix(plan.Deadline, 0).Format(time.DateTime))
	fmt.Fprintf(w, "simulation: %s\n", simulation)
}

// GetCmdSwap returns the swap transaction builder command.
func GetCmdSwap(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "swap [src] [dst] [amount]",
		Short: "Build an exact-input swap for the wallet to sign",
		Long: `Build the router call swapping amount of src into dst for the --account
wallet, with the configured slippage and deadline. Nothing is signed or sent.

Example:
  $ dexctl swap MON 0x5d876d73f4441d5f2438b1a3e2a51771b337f27a 0.25 --account 0xabc...`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			toks, err := c.tokens(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.trade(cmd, func(ctx context.Context, account common.Address) (*service.TxPlan, error) {
				return c.app.Trade.BuildSwap(ctx, account, toks[0], toks[1], args[2])
			})
		},
	}
}

// GetCmdAddLiquidity returns the liquidity deposit builder command.
func GetCmdAddLiquidity(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add-liquidity [a] [b] [amountA] [amountB]",
		Short: "Build a liquidity deposit for the wallet to sign",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			toks, err := c.tokens(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.trade(cmd, func(ctx context.Context, account common.Address) (*service.TxPlan, error) {
				return c.app.Trade.BuildAddLiquidity(ctx, account, toks[0], toks[1], args[2], args[3])
			})
		},
	}
}

// GetCmdRemoveLiquidity returns the liquidity withdrawal builder command.
func GetCmdRemoveLiquidity(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-liquidity [pair] [percent]",
		Short: "Build a withdrawal of percent of the wallet's LP tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := parseAddress("pair", args[0])
			if err != nil {
				return err
			}
			percent, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid percent %q", args[1])
			}
			return c.trade(cmd, func(ctx context.Context, account common.Address) (*service.TxPlan, error) {
				return c.app.Trade.BuildRemoveLiquidity(ctx, account, pair, percent)
			})
		},
	}
}
