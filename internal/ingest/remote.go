package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RemoteFile describes a movement export held by a remote source.
type RemoteFile struct {
	ID      string
	Name    string
	ModTime time.Time
}

// RemoteSource lists and downloads exports from object storage or a shared
// drive.
type RemoteSource interface {
	ListFiles(ctx context.Context) ([]RemoteFile, error)
	Download(ctx context.Context, file RemoteFile, w io.Writer) error
}

// Supported reports whether a file name has an extension the parser reads.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".xlsx"
}

// FetchAll downloads every supported file and decodes it. A malformed file
// fails the whole fetch.
func FetchAll(ctx context.Context, src RemoteSource) ([]Snapshot, error) {
	files, err := src.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var out []Snapshot
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !Supported(f.Name) {
			continue
		}
		snaps, err := Fetch(ctx, src, f)
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}

// Fetch downloads and decodes a single remote file.
func Fetch(ctx context.Context, src RemoteSource, f RemoteFile) ([]Snapshot, error) {
	var buf bytes.Buffer
	if err := src.Download(ctx, f, &buf); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	snaps, err := Decode(f.Name, buf.Bytes(), f.ModTime)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", f.Name).Int("materials", len(snaps)).Msg("remote snapshot decoded")
	return snaps, nil
}
