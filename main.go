package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BorisDmv/portfolio-api/internal/auth"
	"github.com/BorisDmv/portfolio-api/internal/config"
	"github.com/BorisDmv/portfolio-api/internal/content"
	"github.com/BorisDmv/portfolio-api/internal/db"
	"github.com/BorisDmv/portfolio-api/internal/handlers"
	appmiddleware "github.com/BorisDmv/portfolio-api/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	repo, err := db.Open(ctx, cfg, logger.With("component", "store", "backend", cfg.Backend))
	cancel()
	if err != nil {
		logger.Error("store setup failed", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	gate := auth.NewGate(cfg.AdminPassword, cfg.TokenTTL)
	publicLimiter := appmiddleware.NewRateLimiter(cfg.PublicRateLimit)
	defer publicLimiter.Stop()
	loginLimiter := appmiddleware.NewRateLimiter(cfg.LoginRateLimit)
	defer loginLimiter.Stop()

	posts := handlers.NewPostsHandler(repo, logger)
	if cfg.SanitizeContent {
		posts.WithSanitizer(content.NewSanitizer())
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Posts:          posts,
		Admin:          handlers.NewAdminHandler(gate, logger),
		Gate:           gate,
		AllowedOrigins: cfg.CorsAllowedOrigins,
		PublicLimiter:  publicLimiter,
		LoginLimiter:   loginLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := repo.Close(shutdownCtx); err != nil {
		logger.Error("store close error", "error", err)
	}
}
