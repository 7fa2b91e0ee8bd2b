package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/neonmeme/internal/api"
	"github.com/timmy/neonmeme/internal/catalog"
	"github.com/timmy/neonmeme/internal/config"
	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/render"
	"github.com/timmy/neonmeme/internal/service"
	"github.com/timmy/neonmeme/internal/session"
)

func main() {
	appLogger := logger.New(nil)
	logger.SetDefault(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	defaults, limits, err := service.RenderSettings(cfg.Render)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid render settings")
	}

	// Object storage is only needed when an asset source lives in a bucket
	var bucket *catalog.S3Bucket
	if cfg.UsesS3() {
		bucket, err = catalog.NewS3Bucket(ctx, catalog.NewStorageBucketConfig(cfg.Storage))
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	templates, err := catalog.NewProvider(cfg.Assets.Templates, bucket, catalog.TemplateExtensions...)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize template catalog")
	}
	fonts, err := catalog.NewProvider(cfg.Assets.Fonts, bucket, catalog.FontExtensions...)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize font catalog")
	}

	renderer := render.NewRenderer(render.NewFontSet(fonts), limits)

	sessions := session.NewStore(cfg.Session.IdleTTL)
	sessions.StartJanitor(ctx, cfg.Session.SweepInterval)

	var importer *service.ImageImporter
	if cfg.Upload.ImportEnabled {
		importer = service.NewImageImporter(&service.ImporterConfig{
			Timeout:      cfg.Upload.ImportTimeout,
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowPrivate: cfg.Upload.ImportAllowPrivate,
		})
	}

	memeService := service.NewMemeService(
		templates,
		fonts,
		renderer,
		sessions,
		importer,
		&service.MemeConfig{
			GalleryLimit:   cfg.Assets.GalleryLimit,
			MaxUploadBytes: cfg.Upload.MaxBytes,
			MaxPixels:      cfg.Upload.MaxPixels,
			Defaults:       defaults,
		},
	)

	router := api.SetupRouter(memeService, sessions, &cfg.Server, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":             cfg.Server.Port,
			"mode":             cfg.Server.Mode,
			"templates":        cfg.Assets.Templates.Backend,
			"fonts":            cfg.Assets.Fonts.Backend,
			"outline_mode":     defaults.OutlineMode,
			"session_idle_ttl": cfg.Session.IdleTTL.String(),
			"import_enabled":   cfg.Upload.ImportEnabled,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	sessions.Wait()

	appLogger.Info("Server exited")
}
