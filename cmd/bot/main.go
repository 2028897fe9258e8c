package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/bot"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/config"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/infrastructure/bybit"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/infrastructure/database"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/usecase"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/web"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).
			Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	symbols := cfg.Bybit.Symbols
	if cfg.Bybit.ValidateSymbols {
		symbols = validateSymbols(ctx, cfg, logger)
		if len(symbols) == 0 {
			logger.Error("no tradable symbols left after validation")
			os.Exit(1)
		}
	}
	topics := domain.OrderbookTopics(cfg.Bybit.Depth, symbols)

	var journal domain.AlertJournal
	if cfg.DatabaseURL != "" {
		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		repo := database.NewAlertRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare alert journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		journal = repo
	}

	tgBot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error("failed to init telegram bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tgBot.Debug = false
	logger.Info("Telegram bot authorized", slog.String("username", tgBot.Self.UserName))

	streamURL := cfg.Bybit.StreamURL
	if streamURL == "" {
		streamURL = bybit.StreamURL(cfg.Bybit.Testnet)
	}
	marketStream := bybit.NewMarketStream(bybit.StreamOptions{
		URL:          streamURL,
		PingInterval: cfg.Bybit.PingInterval,
		IdlePoll:     cfg.Bybit.IdlePollInterval,
	}, logger)

	notifier := bot.NewNotifier(tgBot, logger)
	dispatcher := usecase.NewDispatcher(notifier, domain.NewSubscriberSet(), journal, logger)

	supervisor := worker.NewSupervisor(marketStream, dispatcher, worker.Options{
		Topics:        topics,
		RestartDelay:  cfg.Bybit.ReconnectDelay,
		InitialFilter: cfg.Filter,
	}, logger)

	botHandler := bot.NewHandler(tgBot, supervisor, dispatcher, logger)

	var statusServer *web.Server
	if cfg.StatusAddr != "" {
		statusServer = web.NewServer(cfg.StatusAddr, supervisor, dispatcher, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("Starting bot...",
		slog.String("env", cfg.Env),
		slog.Bool("testnet", cfg.Bybit.Testnet),
		slog.String("stream", streamURL),
		slog.Int("topics", len(topics)))

	go botHandler.Start(ctx)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", slog.String("error", err.Error()))
		}
	}
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		logger.Warn("supervisor shutdown", slog.String("error", err.Error()))
	}

	logger.Info("Bot stopped gracefully")
}

// validateSymbols отбрасывает символы, которых нет среди торгуемых linear инструментов.
// Если REST недоступен, подписываемся на все символы из конфига.
func validateSymbols(ctx context.Context, cfg *config.Config, logger *slog.Logger) []string {
	client := bybit.NewClient(cfg.Bybit.Testnet, cfg.Bybit.HTTPTimeout)

	valid, unknown, err := client.ValidateSymbols(ctx, cfg.Bybit.Symbols)
	if err != nil {
		logger.Warn("symbol validation skipped", slog.String("error", err.Error()))
		return cfg.Bybit.Symbols
	}
	if len(unknown) > 0 {
		logger.Warn("unknown symbols dropped", slog.Any("symbols", unknown))
	}
	return valid
}
