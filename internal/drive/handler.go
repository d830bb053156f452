package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/andresuchdata/autoreorder/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Runner runs cycles for decoded snapshots.
type Runner interface {
	RunSnapshots(ctx context.Context, snaps []ingest.Snapshot) (pipeline.Report, error)
}

type Handler struct {
	service       *Service
	runner        Runner
	defaultFolder string
}

func NewHandler(service *Service, runner Runner, defaultFolder string) *Handler {
	return &Handler{
		service:       service,
		runner:        runner,
		defaultFolder: defaultFolder,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/cycles", h.RunCycles).Methods(http.MethodPost)
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.folder(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	files, err := h.service.ListFiles(r.Context(), folderID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// RunCycles ingests ?fileId= when given, otherwise every supported file in
// the folder, and runs the pipeline over the result.
func (h *Handler) RunCycles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	folderID, err := h.folder(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	src := h.service.Folder(folderID)

	var snaps []ingest.Snapshot
	if fileID := r.URL.Query().Get("fileId"); fileID != "" {
		snaps, err = h.fetchOne(ctx, src, fileID)
	} else {
		snaps, err = ingest.FetchAll(ctx, src)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	report, err := h.runner.RunSnapshots(ctx, ingest.Filter(snaps, r.URL.Query()["material"]...))
	if err != nil && len(report.Results) == 0 {
		if len(report.Failures) == 0 {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) fetchOne(ctx context.Context, src *FolderSource, fileID string) ([]ingest.Snapshot, error) {
	files, err := src.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.ID == fileID {
			return ingest.Fetch(ctx, src, f)
		}
	}
	return nil, fmt.Errorf("%w: file %s is not in the folder", domain.ErrNotFound, fileID)
}

func (h *Handler) folder(r *http.Request) (string, error) {
	query := r.URL.Query()
	if path := query.Get("path"); path != "" {
		return h.service.FindFolderByPath(r.Context(), path)
	}
	if id := query.Get("folderId"); id != "" {
		return id, nil
	}
	return h.defaultFolder, nil
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, domain.ErrDataIntegrity) || errors.Is(err, domain.ErrInsufficientData) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Error().Err(err).Int("status", status).Msg("drive request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
