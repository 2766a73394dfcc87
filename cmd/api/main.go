package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/octobees/visa-directory/api/internal/blob"
	"github.com/octobees/visa-directory/api/internal/config"
	"github.com/octobees/visa-directory/api/internal/database"
	"github.com/octobees/visa-directory/api/internal/handler"
	"github.com/octobees/visa-directory/api/internal/jobs"
	"github.com/octobees/visa-directory/api/internal/logger"
	middlewarepkg "github.com/octobees/visa-directory/api/internal/middleware"
	"github.com/octobees/visa-directory/api/internal/places"
	"github.com/octobees/visa-directory/api/internal/repository"
	"github.com/octobees/visa-directory/api/internal/router"
	"github.com/octobees/visa-directory/api/internal/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		zlog.Fatal("failed to apply schema", zap.Error(err))
	}

	var blobStore blob.Store
	switch cfg.BlobBackend {
	case "gcs":
		blobStore, err = blob.NewGCSStore(ctx, cfg.GCSBucket)
	default:
		blobStore, err = blob.NewLocalStore(cfg.BlobLocalDir, cfg.BlobPublicBaseURL)
	}
	if err != nil {
		zlog.Fatal("failed to init blob store", zap.Error(err))
	}

	perRequest := cfg.PlacesRate.Interval / time.Duration(cfg.PlacesRate.Requests)
	limiter := rate.NewLimiter(rate.Every(perRequest), cfg.PlacesRate.Requests)
	placesClient := places.NewClient(cfg.PlacesAPIKey, limiter, blobStore, cfg.PlacesTimeout, zlog)

	repo := repository.NewPGXBusinessesRepository(pool)
	registry := jobs.NewRegistry()
	orchestrator := scraper.New(placesClient, places.NewExtractor(), repo, registry, zlog, cfg.SearchRadius)

	scrapingHandler := handler.NewScrapingHandler(orchestrator, registry, repo, cfg.ScrapeDelay)
	businessesHandler := handler.NewBusinessesHandler(repo)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(zlog))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())

	router.Register(e, cfg, router.Handlers{
		Scraping:   scrapingHandler,
		Businesses: businessesHandler,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()
	zlog.Info("server listening", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
