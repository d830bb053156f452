package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/andresuchdata/autoreorder/internal/pipeline"
	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes bounds a single movement export.
const maxUploadBytes = 32 << 20

type CycleHandler struct {
	cycles *service.CycleService
}

func NewCycleHandler(cycles *service.CycleService) *CycleHandler {
	return &CycleHandler{cycles: cycles}
}

// RunUpload runs one cycle per material across the uploaded files. Materials
// that fail are listed under "failures" while the rest still complete.
func (h *CycleHandler) RunUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	combined := pipeline.Report{}
	for _, file := range files {
		content, err := readUpload(file)
		if err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Msg("failed to read uploaded file")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		report, err := h.cycles.RunUpload(c.Request.Context(), file.Filename, content, time.Now())
		if err != nil && len(report.Results) == 0 && len(report.Failures) == 0 {
			respondError(c, err)
			return
		}
		combined.Results = append(combined.Results, report.Results...)
		for material, msg := range report.Failures {
			if combined.Failures == nil {
				combined.Failures = make(map[string]string)
			}
			combined.Failures[material] = msg
		}
	}

	status := http.StatusOK
	if len(combined.Results) == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, combined)
}

func (h *CycleHandler) RecentRuns(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)
	runs, err := h.cycles.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxUploadBytes {
		return nil, errors.New("file too large: " + file.Filename)
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}
