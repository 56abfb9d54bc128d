package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mazbron/video-downloader/config"
	"github.com/mazbron/video-downloader/internal/handler"
	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/internal/service"
	"github.com/mazbron/video-downloader/internal/storage"
	"github.com/mazbron/video-downloader/pkg/logger"
	"github.com/mazbron/video-downloader/pkg/middleware"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Video Downloader Bot",
		zap.String("download_dir", cfg.Storage.DownloadDir),
		zap.String("yt_dlp", cfg.Extractor.Binary),
		zap.Int("max_concurrent_downloads", cfg.Extractor.MaxConcurrent))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage manager
	storageManager := storage.NewManager(&cfg.Storage)
	if err := storageManager.EnsureDownloadDir(); err != nil {
		logger.Logger.Fatal("Failed to create download directory", zap.Error(err))
	}
	storageManager.Start()
	defer storageManager.Stop()

	// Initialize services
	usageService := service.NewUsageService(cfg.Stats.FilePath)
	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()
	extractorService := service.NewExtractorService(&cfg.Extractor)

	pendingStore := service.NewPendingStore(cfg.Session.PendingTTL)
	go pendingStore.Run(ctx, cfg.Session.CleanupInterval)

	// Telegram
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Logger.Fatal("Failed to connect to Telegram", zap.Error(err))
	}
	bot.Debug = cfg.Bot.Debug
	logger.Logger.Info("Authorized on Telegram", zap.String("username", bot.Self.UserName))

	gateway := handler.NewTelegramGateway(bot)
	orchestrator := service.NewOrchestrator(gateway, extractorService, storageManager, usageService, pendingStore, cfg.Extractor.MaxConcurrent)
	botHandler := handler.NewBotHandler(bot, gateway, orchestrator, usageService, rateLimitService, cfg)

	// Optional admin server
	var srv *http.Server
	if cfg.Admin.Enabled {
		srv = newAdminServer(cfg, rateLimitService, handler.NewStatsHandler(usageService, storageManager, orchestrator))
		go func() {
			logger.Logger.Info("Admin server listening", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Logger.Error("Admin server error", zap.Error(err))
			}
		}()
	}

	logger.Logger.Info("Bot is running")
	botHandler.Run(ctx)

	logger.Logger.Info("Shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Admin.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Admin server forced to shutdown", zap.Error(err))
		}
	}

	logger.Logger.Info("Bot stopped")
}

func newAdminServer(cfg *model.Config, rateLimitService *service.RateLimitService, statsHandler *handler.StatsHandler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(rateLimitService))
	}

	statsHandler.RegisterRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port),
		Handler:      router,
		ReadTimeout:  cfg.Admin.Timeout,
		WriteTimeout: cfg.Admin.Timeout,
		IdleTimeout:  120 * time.Second,
	}
}
