// Package app wires the configured services shared by the API server and the
// CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nulln0ne/uniswap-dex/internal/config"
	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/metrics"
	"github.com/nulln0ne/uniswap-dex/internal/resolver"
	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/internal/txlog"
	"github.com/nulln0ne/uniswap-dex/internal/wallet"
)

// App holds the services built from one Config.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   *ethclient.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Resolver  *resolver.Resolver
	Lister    *token.Lister
	Tokens    *token.Directory
	Estimates *service.EstimateService
	Liquidity *service.LiquidityService
	Positions *service.PositionService
	Trade     *service.TradeService
	Journal   *txlog.Journal

	closers []func() error
}

// New dials the node and builds every service. The caller must Close the
// returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	client, err := eth.Dial(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Registry: prometheus.NewRegistry(),
		closers:  []func() error{func() error { client.Close(); return nil }},
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger
	a.Metrics = metrics.New(a.Registry)

	native := cfg.Network.Native()
	a.Resolver = resolver.New(logger, a.Client, cfg.Factory, cfg.WrappedNative,
		resolver.WithObserver(a.Metrics.ObserveLookup))
	a.Lister = token.NewLister(logger, cfg.TokenListURL, cfg.Network.ChainID, native,
		token.WithHTTPClient(&http.Client{Timeout: cfg.TokenListWait}),
		token.WithFallbackHook(a.Metrics.TokenListFallback))
	go a.Lister.Fetch(ctx)
	a.Tokens = token.NewDirectory(logger, native, a.Lister, a.Client)

	var err error
	a.Estimates, err = service.NewEstimateService(logger, a.Client, a.Resolver, cfg.Router, cfg.EstimateCacheSize, a.Metrics)
	if err != nil {
		return err
	}
	a.Liquidity = service.NewLiquidityService(logger, a.Resolver)
	scan := service.NewFactoryScan(logger, a.Client, cfg.Factory, cfg.WrappedNative,
		cfg.Network.NativeSymbol, cfg.PositionScanLimit, cfg.RPCRateLimit)
	a.Positions = service.NewPositionService(logger, scan)
	a.Trade = service.NewTradeService(logger, a.Client, a.Estimates, service.TradeConfig{
		Router:               cfg.Router,
		Wrapped:              cfg.WrappedNative,
		NativeSymbol:         cfg.Network.NativeSymbol,
		SwapSlippageBps:      cfg.SwapSlippageBps,
		LiquiditySlippageBps: cfg.LiquiditySlippageBps,
		DeadlineWindow:       cfg.DeadlineWindow,
	})

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	opts := []txlog.Option{
		txlog.WithCap(cfg.TxLogCap),
		txlog.WithObserver(func(typ txlog.Type, status txlog.Status) {
			a.Metrics.ObserveTransaction(string(typ), string(status))
		}),
	}
	if cfg.DemoMode {
		logger.Warn("demo mode enabled: empty histories are filled with sample transactions")
		opts = append(opts, txlog.WithDemo(cfg.Router, cfg.Factory))
	}
	a.Journal = txlog.NewJournal(logger, store, opts...)
	return nil
}

func (a *App) openStore(ctx context.Context) (txlog.Store, error) {
	if a.Config.TxLogPath == "" {
		return txlog.NewMemoryStore(), nil
	}
	store, err := txlog.OpenSQLite(ctx, a.Config.TxLogPath, txlog.DefaultKey)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.Logger.Info("transaction journal opened", "path", a.Config.TxLogPath)
	return store, nil
}

// Close releases the journal database and the node connection.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

// NewSession returns a disconnected wallet session on the configured network.
func (a *App) NewSession() *wallet.Session {
	return wallet.NewSession(a.Logger, a.Client, a.Config.Network)
}
