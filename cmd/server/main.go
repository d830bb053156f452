// Command server serves the reorder HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/autoreorder/internal/api"
	"github.com/andresuchdata/autoreorder/internal/app"
	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/pkg/logger"
	"github.com/gin-gonic/gin"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := config.Load()
	logger.Setup(os.Stdout, cfg.Server.LogLevel, cfg.Server.LogFormat)

	if err := run(cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) error {
	if cfg.Server.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(application.Services(), cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("mode", gin.Mode()).Msg("reorder API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("shutting down, waiting for in-flight cycles")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Log.Info().Msg("server exited")
	return nil
}
