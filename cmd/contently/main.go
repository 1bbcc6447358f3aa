package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"contently/internal/bot"
	"contently/internal/config"
	"contently/internal/domain"
	"contently/internal/scraper"
	"contently/internal/storage"
	"contently/internal/web"
)

const gcInterval = 5 * time.Minute

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(cfg.Level())
	if cfg.Level() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	log.WithFields(logrus.Fields{
		"http_addr":     cfg.HTTPAddr,
		"badgerdb_path": cfg.BadgerDBPath,
		"endpoint":      cfg.ScraperEndpoint,
		"telegram":      cfg.TelegramBotToken != "",
	}).Info("Configuration loaded successfully")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Contently stopped with error")
		os.Exit(1)
	}
	log.Info("Contently shut down gracefully.")
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Result store
	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, cfg.ResultTTL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()
	go repo.RunGC(ctx, gcInterval)

	// Scraper
	s := scraper.NewAPIScraper(cfg.RapidAPIKey, log,
		scraper.WithEndpoint(cfg.ScraperEndpoint),
		scraper.WithHost(cfg.ScraperHost),
		scraper.WithTimeout(cfg.ScraperTimeout),
	)
	preview := domain.PreviewLimits{Runes: cfg.PreviewRunes, Lines: cfg.PreviewLines}

	// Telegram front end, optional
	if cfg.TelegramBotToken != "" {
		botHandler, err := bot.NewHandler(cfg.TelegramBotToken, repo, s, preview, log)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot handler: %w", err)
		}
		go botHandler.Start(ctx)
	}

	// Web front end
	h := web.NewHandler(s, repo, preview, cfg.AppVersion, log)
	srv, err := web.NewServer(cfg.HTTPAddr, h, web.Options{
		RateLimit:      web.RateLimit{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		TrustedProxies: cfg.TrustedProxies,
	}, log)
	if err != nil {
		return err
	}

	log.Info("Contently is running. Press Ctrl+C to exit.")
	return srv.Start(ctx)
}
