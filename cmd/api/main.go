package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"formcite/api/internal/app"
	"formcite/api/internal/config"
	"formcite/api/internal/docstore"
	"formcite/api/internal/export"
	"formcite/api/internal/logger"
	"formcite/api/internal/search"
	"formcite/api/internal/session"
	"formcite/api/internal/store"
	"formcite/api/internal/tmplrepo"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		zlog.Fatal("migrations failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.TemplatesDir, 0o755); err != nil {
		zlog.Fatal("failed to create templates dir", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)
	tmplService := tmplrepo.New(cfg.TemplatesDir)

	service := app.New(cfg, dataStore, tmplService, zlog)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		zlog.Info("using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisStore.Close()
		service.SetRefreshStore(redisStore)
	} else {
		zlog.Info("using PostgreSQL for refresh token storage")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, zlog)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, zlog)
	service.SetSearch(searchService)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		docs, err := docstore.New(docstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			zlog.Fatal("object storage init failed", zap.Error(err))
		}
		if err := docs.EnsureBucket(ctx); err != nil {
			zlog.Fatal("object storage bucket check failed", zap.Error(err))
		}
		service.SetDocStore(docs)
	}

	service.SetExporter(export.NewService(dataStore))

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, zlog)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("Formcite API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
