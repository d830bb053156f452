package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/andresuchdata/autoreorder/internal/pipeline"
	"github.com/rs/zerolog/log"
)

// CycleRunner is the part of the orchestrator the services drive.
type CycleRunner interface {
	RunAll(ctx context.Context, snaps []ingest.Snapshot) (pipeline.Report, error)
	RecentRuns(ctx context.Context, limit int) ([]pipeline.CycleRun, error)
}

// Archiver stores uploaded exports before they are processed.
type Archiver interface {
	UploadObject(ctx context.Context, key string, data []byte) error
	ArchiveKey(name, identity string) string
}

type CycleService struct {
	runner   CycleRunner
	archiver Archiver

	mu     sync.RWMutex
	latest map[string]pipeline.CycleResult
}

// NewCycleService wires a runner. archiver may be nil when object storage is
// disabled.
func NewCycleService(runner CycleRunner, archiver Archiver) *CycleService {
	return &CycleService{
		runner:   runner,
		archiver: archiver,
		latest:   make(map[string]pipeline.CycleResult),
	}
}

// RunUpload decodes an uploaded export, archives it, and runs one cycle per
// material found in it.
func (s *CycleService) RunUpload(ctx context.Context, name string, content []byte, modTime time.Time) (pipeline.Report, error) {
	snaps, err := ingest.Decode(name, content, modTime)
	if err != nil {
		return pipeline.Report{}, err
	}

	if s.archiver != nil && len(snaps) > 0 {
		key := s.archiver.ArchiveKey(name, snaps[0].Identity)
		if err := s.archiver.UploadObject(ctx, key, content); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to archive upload")
		} else {
			log.Info().Str("key", key).Msg("archived upload")
		}
	}

	return s.RunSnapshots(ctx, snaps)
}

// RunFile runs cycles for a local CSV or XLSX file.
func (s *CycleService) RunFile(ctx context.Context, path string, materials ...string) (pipeline.Report, error) {
	snaps, err := ingest.ReadFile(path)
	if err != nil {
		return pipeline.Report{}, err
	}
	return s.RunSnapshots(ctx, ingest.Filter(snaps, materials...))
}

// RunRemote pulls every supported file from a remote source.
func (s *CycleService) RunRemote(ctx context.Context, src ingest.RemoteSource, materials ...string) (pipeline.Report, error) {
	snaps, err := ingest.FetchAll(ctx, src)
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("fetch remote snapshots: %w", err)
	}
	return s.RunSnapshots(ctx, ingest.Filter(snaps, materials...))
}

// RunSnapshots runs the pipeline and keeps the latest successful result per
// material for the inventory views.
func (s *CycleService) RunSnapshots(ctx context.Context, snaps []ingest.Snapshot) (pipeline.Report, error) {
	if len(snaps) == 0 {
		return pipeline.Report{}, fmt.Errorf("%w: no movements found", ingest.ErrMalformed)
	}

	report, err := s.runner.RunAll(ctx, snaps)

	s.mu.Lock()
	for _, res := range report.Results {
		s.latest[res.MaterialID] = res
	}
	s.mu.Unlock()

	log.Info().
		Int("materials", len(snaps)).
		Int("succeeded", len(report.Results)).
		Int("failed", len(report.Failures)).
		Msg("cycle batch finished")
	return report, err
}

// Latest returns the most recent successful cycle for a material.
func (s *CycleService) Latest(materialID string) (pipeline.CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.latest[materialID]
	return res, ok
}

// Materials lists the materials with a stored result.
func (s *CycleService) Materials() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.latest))
	for id := range s.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *CycleService) RecentRuns(ctx context.Context, limit int) ([]pipeline.CycleRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runner.RecentRuns(ctx, limit)
}
