package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nulln0ne/uniswap-dex/internal/app"
	"github.com/nulln0ne/uniswap-dex/internal/config"
	"github.com/nulln0ne/uniswap-dex/internal/handler"
	"github.com/nulln0ne/uniswap-dex/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	server := fiber.New()
	server.Use(recoverer.New())
	routes(server, deps)

	logger.Info("starting server", "addr", cfg.Addr, "network", cfg.Network.Name, "chain_id", cfg.Network.ChainID)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = server.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	return nil
}

func routes(server *fiber.App, deps *app.App) {
	logger := deps.Logger

	server.Get("/estimate", handler.NewEstimateHandler(logger, deps.Estimates, deps.Tokens).Handle())
	server.Get("/pair", handler.NewPairHandler(logger, deps.Resolver, deps.Tokens).Handle())
	server.Get("/liquidity/balance", handler.NewLiquidityHandler(logger, deps.Liquidity, deps.Tokens).Handle())
	server.Get("/tokens", handler.NewTokensHandler(logger, deps.Lister).Handle())
	server.Get("/network", handler.NewNetworkHandler(logger, deps.Config.Network).Handle())
	server.Get("/positions", handler.NewPositionsHandler(logger, deps.Positions).Handle())
	server.Get("/balance", handler.NewBalanceHandler(logger, deps.Client, deps.Tokens).Handle())

	tx := handler.NewTxHandler(logger, deps.Trade, deps.Tokens)
	server.Post("/tx/swap", tx.Swap())
	server.Post("/tx/add-liquidity", tx.AddLiquidity())
	server.Post("/tx/remove-liquidity", tx.RemoveLiquidity())

	history := handler.NewHistoryHandler(logger, deps.Journal, deps.Client)
	server.Get("/history", history.List())
	server.Post("/history", history.Record())
	server.Post("/history/reconcile", history.Reconcile())
	server.Patch("/history/:hash", history.SetStatus())

	server.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
}
