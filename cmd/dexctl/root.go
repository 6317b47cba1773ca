package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sugawarayuuta/sonnet"

	"github.com/nulln0ne/uniswap-dex/internal/app"
	"github.com/nulln0ne/uniswap-dex/internal/config"
	"github.com/nulln0ne/uniswap-dex/internal/logging"
	"github.com/nulln0ne/uniswap-dex/internal/wallet"
)

const (
	flagRPC      = "rpc"
	flagLogLevel = "log-level"
	flagChainID  = "chain-id"
	flagOutput   = "output"
	flagAccount  = "account"
)

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	app     *app.App
	session *wallet.Session
}

// NewRootCmd returns the dexctl command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "dexctl",
		Short: "Query a Uniswap V2 style exchange from the command line",
		Long: `dexctl resolves pairs, quotes swaps and inspects liquidity positions on a
Uniswap V2 style exchange. Settings come from the environment (or .env) and
can be overridden with flags.

Example:
  $ dexctl quote MON 0x5d876d73f4441d5f2438b1a3e2a51771b337f27a 1.5
  $ dexctl positions --account 0xabc... --output json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.session != nil {
				c.session.Disconnect()
			}
			if c.app != nil {
				c.app.Close()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagRPC, "", "JSON-RPC endpoint (ETH_RPC_URL)")
	flags.String(flagLogLevel, "", "log level: debug, info, warn, error (LOG_LEVEL)")
	flags.String(flagChainID, "", "chain id, decimal or 0x-hex (CHAIN_ID)")
	flags.StringP(flagOutput, "o", "text", "output format: text or json")
	flags.String(flagAccount, "", "wallet account used by balance, positions and trade commands (WALLET_ACCOUNT)")
	_ = c.v.BindPFlag("ETH_RPC_URL", flags.Lookup(flagRPC))
	_ = c.v.BindPFlag("LOG_LEVEL", flags.Lookup(flagLogLevel))
	_ = c.v.BindPFlag("CHAIN_ID", flags.Lookup(flagChainID))
	_ = c.v.BindPFlag("WALLET_ACCOUNT", flags.Lookup(flagAccount))

	cmd.AddCommand(
		GetCmdQuote(c),
		GetCmdWatch(c),
		GetCmdPair(c),
		GetCmdTokens(c),
		GetCmdPositions(c),
		GetCmdBalance(c),
		GetCmdHistory(c),
		GetCmdSwap(c),
		GetCmdAddLiquidity(c),
		GetCmdRemoveLiquidity(c),
	)
	return cmd
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	logger := logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)
	c.app, err = app.New(cmd.Context(), cfg, logger)
	return err
}

// connect opens a wallet session for the configured account. The session is
// disconnected when the command finishes.
func (c *cli) connect(cmd *cobra.Command) (*wallet.Session, error) {
	raw := c.v.GetString("WALLET_ACCOUNT")
	if raw == "" {
		return nil, fmt.Errorf("%w: set --account or WALLET_ACCOUNT", wallet.ErrNoAccount)
	}
	account, err := parseAddress("account", raw)
	if err != nil {
		return nil, err
	}
	session := c.app.NewSession()
	if _, err := session.Connect(cmd.Context(), account); err != nil {
		return nil, err
	}
	c.session = session
	return session, nil
}

// render writes v as JSON when --output json is set, otherwise runs text.
func render(cmd *cobra.Command, v any, text func()) error {
	if out, _ := cmd.Flags().GetString(flagOutput); out == "json" {
		raw, err := sonnet.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}
	text()
	return nil
}
