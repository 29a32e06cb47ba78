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

	"go.uber.org/zap"

	"github.com/yyyoichi/watermark_svd/internal/cache"
	"github.com/yyyoichi/watermark_svd/internal/config"
	"github.com/yyyoichi/watermark_svd/internal/logger"
	"github.com/yyyoichi/watermark_svd/internal/server"
	"github.com/yyyoichi/watermark_svd/internal/store"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting wmsvd server",
		zap.String("version", Version),
		zap.String("wavelet", cfg.Embed.Wavelet),
		zap.Int("level", cfg.Embed.Level),
		zap.String("band", cfg.Embed.Band),
		zap.Float64("alpha", cfg.Embed.Alpha),
	)

	ledger, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var rc server.ResultCache
	if cfg.Redis.Addr != "" {
		c := cache.New(&cfg.Redis)
		defer c.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
			rc = c
		}
	}

	srv, err := server.New(cfg, log, ledger, rc)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	log.Info("server starting", zap.String("addr", cfg.Server.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
