// Command api serves the Google Drive ingestion endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/andresuchdata/autoreorder/internal/app"
	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/internal/drive"
	"github.com/andresuchdata/autoreorder/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	logger.Setup(os.Stdout, cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx := context.Background()
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	r := mux.NewRouter()
	drive.NewHandler(driveService, application.Cycles, cfg.Drive.FolderID).RegisterRoutes(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("Drive server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Fatal().Err(err).Msg("Drive server stopped")
	}
}
