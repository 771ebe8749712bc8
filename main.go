package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"cryptoRsiBot/config"
	"cryptoRsiBot/internal/adapters/binanceclient"
	"cryptoRsiBot/internal/adapters/logger"
	"cryptoRsiBot/internal/adapters/sqlite"
	"cryptoRsiBot/internal/adapters/telegram"
	"cryptoRsiBot/internal/app"
	"cryptoRsiBot/internal/position"
	"cryptoRsiBot/internal/risk"
	"cryptoRsiBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	defer appLogger.Sync() //nolint:errcheck // stderr sync failure on exit is harmless
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// Root context is canceled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized")

	// 5. Initialize Notifier (Telegram Adapter)
	notifier, err := telegram.NewNotifier(telegram.Config{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Telegram notifier")
		log.Fatalf("FATAL: Failed to initialize Telegram notifier: %v", err)
	}

	// 6. Initialize Strategy
	strat, err := strategy.New(strategy.Config{
		RSIPeriod:        cfg.RSIPeriod,
		RSIOverbought:    cfg.RSIOverbought,
		RSIOversold:      cfg.RSIOversold,
		MACDFastPeriod:   cfg.MACDFastPeriod,
		MACDSlowPeriod:   cfg.MACDSlowPeriod,
		MACDSignalPeriod: cfg.MACDSignalPeriod,
		ATRPeriod:        cfg.ATRPeriod,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}
	appLogger.Info(ctx, "Trading strategy initialized")

	// 7. Initialize Risk Sizer
	sizer, err := risk.NewSizer(risk.Config{
		RiskPerTrade:     cfg.RiskPerTrade,
		ATRMultiplier:    cfg.ATRMultiplier,
		TakeProfitRatio:  cfg.TakeProfitRatio,
		UseATRStopLoss:   cfg.UseATRStopLoss,
		BasePositionSize: cfg.BasePositionSize,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk sizer")
		log.Fatalf("FATAL: Failed to initialize risk sizer: %v", err)
	}

	// 8. Initialize Position Manager
	posManager, err := position.NewManager(position.Config{
		Symbol:   cfg.Symbol,
		Logger:   appLogger,
		Exchange: binanceClient,
		Trades:   repo,
		Notifier: notifier,
		Sizer:    sizer,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position manager")
		log.Fatalf("FATAL: Failed to initialize position manager: %v", err)
	}

	// 9. Initialize Application Service
	tradingService, err := app.NewTradingService(
		cfg,
		appLogger,
		binanceClient,
		repo,
		strat,
		posManager,
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized")

	// 10. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Trading service failed to start")
		log.Fatalf("FATAL: Trading service failed to start: %v", err)
	}

	// 11. Start the Telegram command listener
	bot := telegram.NewBot(notifier, tradingService, binanceClient, cfg.TelegramChatID, appLogger)
	go func() {
		if err := bot.Run(ctx); err != nil {
			appLogger.Error(ctx, err, "Telegram command listener exited with error")
		}
	}()

	// Block until shutdown is requested
	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutdown signal received, stopping trading service...")
	tradingService.Stop(context.Background())
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
