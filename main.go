package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"spotCycleBot/config"
	"spotCycleBot/internal/adapters/binanceclient"
	"spotCycleBot/internal/adapters/logger"
	"spotCycleBot/internal/adapters/sqlite"
	"spotCycleBot/internal/adapters/telegram"
	"spotCycleBot/internal/api"
	"spotCycleBot/internal/app"
	"spotCycleBot/internal/daily"
	"spotCycleBot/internal/ports"
	"spotCycleBot/internal/strategy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info(ctx, "Initializing trading bot", map[string]interface{}{
		"symbol":  cfg.Symbol,
		"testnet": cfg.IsTestnet,
	})

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer repo.Close()

	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize exchange client: %w", err)
	}

	var notifier ports.Notifier
	if cfg.TelegramToken != "" {
		tg, err := telegram.New(telegram.Config{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
			Logger: appLogger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram notifier: %w", err)
		}
		notifier = tg
	} else {
		appLogger.Warn(ctx, "Telegram token not set, notifications disabled")
		notifier = telegram.NewNoop()
	}

	evaluator, err := strategy.New(strategy.Config{
		RSIPeriod:     cfg.RSIPeriod,
		ShortMAPeriod: cfg.ShortMAPeriod,
		LongMAPeriod:  cfg.LongMAPeriod,
		EMAPeriod:     cfg.EMAPeriod,
		RSIOverbought: cfg.RSIOverbought,
		RSIOversold:   cfg.RSIOversold,
		MinConfluence: cfg.MinConfluence,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize signal evaluator: %w", err)
	}

	dailyCtrl, err := daily.New(daily.Config{
		ProfitTarget: cfg.DailyProfitTarget,
		MaxLoss:      cfg.MaxDailyLoss,
	}, appLogger, daily.WithRepository(repo))
	if err != nil {
		return fmt.Errorf("failed to initialize daily controller: %w", err)
	}

	statusServer, err := api.NewServer(api.Config{
		Port:   cfg.HTTPPort,
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize status server: %w", err)
	}

	service, err := app.NewTradingService(cfg, appLogger, exchange, evaluator, notifier, dailyCtrl, repo, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize trading service: %w", err)
	}
	statusServer.SetProvider(service)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.Start(ctx)
	})
	g.Go(func() error {
		return statusServer.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	appLogger.Info(context.Background(), "Trading bot exited cleanly")
	return nil
}
