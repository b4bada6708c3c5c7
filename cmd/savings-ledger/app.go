package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/savings-ledger/internal/balance"
	"github.com/example/savings-ledger/internal/chain"
	"github.com/example/savings-ledger/internal/chain/ethrpc"
	"github.com/example/savings-ledger/internal/config"
	"github.com/example/savings-ledger/internal/history"
	"github.com/example/savings-ledger/internal/logger"
	"github.com/example/savings-ledger/pkg/transaction"
)

// app holds the wired core for one command invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	backend  *ethrpc.Backend
	balances *balance.Resolver
	history  *history.Aggregator
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	backend, err := ethrpc.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		return nil, err
	}

	reader := chain.NewReader(backend, log, chain.WithTimeouts(cfg.Timeouts.Call, cfg.Timeouts.Scan))

	return &app{
		cfg:     cfg,
		log:     log,
		backend: backend,
		balances: balance.NewResolver(reader, map[transaction.Product]string{
			transaction.QuickSave: cfg.Contracts.QuickSave,
			transaction.SafeLock:  cfg.Contracts.SafeLock,
		}, log),
		history: history.NewAggregator(reader, history.Addresses{
			QuickSave:     cfg.Contracts.QuickSave,
			SafeLock:      cfg.Contracts.SafeLock,
			CircleFactory: cfg.Contracts.CircleFactory,
		}, nil, log),
	}, nil
}

func (a *app) Close() {
	a.backend.Close()
}
