package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/account"
	"lighter-mcp/internal/config"
	"lighter-mcp/internal/confirm"
	"lighter-mcp/internal/deposit"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/exchange/hyperliquid"
	"lighter-mcp/internal/exchange/lighter"
	"lighter-mcp/internal/funding"
	"lighter-mcp/internal/logger"
	"lighter-mcp/internal/market"
	"lighter-mcp/internal/orders"
	"lighter-mcp/internal/server"
	"lighter-mcp/internal/session"
	"lighter-mcp/internal/signer"
	"lighter-mcp/internal/tools"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log)
	lg.WithFields(logrus.Fields{
		"port":      cfg.App.Port,
		"lighter":   cfg.Lighter.BaseURL,
		"hub":       cfg.Hub.BaseURL,
		"chain_id":  cfg.Lighter.ChainID,
		"log_level": cfg.Log.Level,
	}).Info("Config loaded")

	catalog, err := market.LoadEmbedded()
	if err != nil {
		lg.Fatal(fmt.Sprintf("Failed to load market catalog: %v", err))
	}

	store, err := openSessionStore(cfg.Session)
	if err != nil {
		lg.Fatal(fmt.Sprintf("Failed to open session store: %v", err))
	}
	defer store.Close()

	lighterClient := lighter.NewClient(cfg.Lighter, lg.WithComponent("lighter"))
	hub := signer.NewHub(cfg.Hub, lg.WithComponent("hub"))

	orch := orders.New(
		catalog,
		session.NewRegistry(store, lg.WithComponent("session")),
		account.NewResolver(lighterClient, lg.WithComponent("account")),
		lighterClient,
		confirm.NewWaiter(lighterClient, confirm.PolicyFromConfig(cfg.Confirm), lg.WithComponent("confirm")),
		orders.Options{
			DefaultLeverage: cfg.Orders.DefaultLeverage,
			MaxSlippage:     decimal.NewFromFloat(cfg.Orders.MaxSlippage),
			ChainID:         cfg.Lighter.ChainID,
		},
		lg.WithComponent("orders"),
	)
	orch.SetAccountAPI(lighterClient)

	// Deposits need an L1 RPC and the bridge address; without them the
	// deposit tool reports itself unconfigured.
	if cfg.Deposit.RPCURL != "" && cfg.Deposit.BridgeAddress != "" {
		depositor, err := deposit.Dial(cfg.Deposit, lg.WithComponent("deposit"))
		if err != nil {
			lg.WithError(err).Warn("Deposits disabled")
		} else {
			orch.SetDepositor(depositor)
		}
	}

	comparator := funding.NewComparator(lighter.VenueLighter, map[string]exchange.FundingSource{
		lighter.VenueLighter: lighterClient,
		hyperliquid.Venue:    hyperliquid.NewClient(cfg.Hyperliquid, lg.WithComponent("hyperliquid")),
	}, lg.WithComponent("funding"))

	registry := tools.NewRegistry(orch, comparator, lg.WithComponent("tools"))
	srv := server.New(registry, hub, server.Options{
		AllowedOrigins: cfg.App.AllowedOrigins,
		Markets:        catalog.Len(),
		Version:        version,
	}, lg.WithComponent("server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
		lg.WithError(err).Error("Server stopped")
		return
	}
	lg.Info("Shutting down...")
}

func openSessionStore(cfg config.SessionConfig) (session.Store, error) {
	if cfg.StorePath == "" {
		return session.NewMemoryStore(), nil
	}
	return session.OpenBadgerStore(cfg.StorePath)
}
