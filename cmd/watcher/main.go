package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"newswatcher/internal/classifier"
	"newswatcher/internal/config"
	"newswatcher/internal/fetcher"
	"newswatcher/internal/model"
	"newswatcher/internal/notify"
	"newswatcher/internal/pipeline"
	"newswatcher/internal/scheduler"
	"newswatcher/internal/scrape"
	"newswatcher/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second}

	var extractor fetcher.Extractor
	if cfg.ExtractContent {
		extractor = scrape.New(httpClient)
	}
	producers := map[model.SourceKind]fetcher.Producer{
		model.SourceRSS:      fetcher.NewRSS(httpClient, extractor, log),
		model.SourceTelegram: fetcher.NewTelegram(httpClient),
	}

	var notifier pipeline.Notifier
	if cfg.TelegramBotToken != "" {
		n, err := notify.New(cfg.TelegramBotToken, log)
		if err != nil {
			log.Error("create notifier", "error", err)
			os.Exit(1)
		}
		notifier = n
	}

	provider := classifier.NewGeminiProvider(cfg.GeminiModel, httpClient)

	fetchJob := pipeline.NewFetchJob(store, producers, cfg.FetchConcurrency, log)
	classifyJob := pipeline.NewClassifyJob(store, provider,
		time.Duration(cfg.RecencyWindowHours)*time.Hour, notifier, log)

	sched := scheduler.New(log)
	sched.Add("fetch", time.Duration(cfg.FetchIntervalMin)*time.Minute, func(ctx context.Context) {
		fetchJob.Run(ctx)
	})
	sched.Add("classify", time.Duration(cfg.ClassifyInterval)*time.Minute, func(ctx context.Context) {
		classifyJob.Run(ctx)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting newswatcher")
	sched.Run(ctx)
	log.Info("newswatcher stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
