// Package drive reads movement exports from a Google Drive folder.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andresuchdata/autoreorder/internal/ingest"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// filesAPI is the slice of the Drive files API the service calls.
type filesAPI interface {
	list(ctx context.Context, query, fields string) ([]*drive.File, error)
	download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

type driveFiles struct {
	srv *drive.Service
}

func (d driveFiles) list(ctx context.Context, query, fields string) ([]*drive.File, error) {
	var out []*drive.File
	err := d.srv.Files.List().
		Q(query).
		Fields(googleapi.Field("nextPageToken, " + fields)).
		Pages(ctx, func(page *drive.FileList) error {
			out = append(out, page.Files...)
			return nil
		})
	return out, err
}

func (d driveFiles) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := d.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

type Service struct {
	api filesAPI
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	config, err := google.JWTConfigFromJSON(
		[]byte(credentialsJSON),
		drive.DriveReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{api: driveFiles{srv: srv}}, nil
}

type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime,omitempty"`
	Size         int64     `json:"size,omitempty"`
}

func (s *Service) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	if folderID == "" {
		folderID = "root"
	}

	result, err := s.api.list(ctx,
		fmt.Sprintf("'%s' in parents and trashed=false", escape(folderID)),
		"files(id, name, mimeType, modifiedTime, size)")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	files := make([]File, 0, len(result))
	for _, f := range result {
		file := File{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Size: f.Size}
		if f.ModifiedTime != "" {
			if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
				file.ModifiedTime = t
			}
		}
		files = append(files, file)
	}
	return files, nil
}

func (s *Service) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	body, err := s.api.download(ctx, fileID)
	if err != nil {
		return fmt.Errorf("unable to download file %s: %w", fileID, err)
	}
	defer body.Close()

	_, err = io.Copy(w, body)
	return err
}

func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	currentID := "root"
	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		result, err := s.api.list(ctx,
			fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escape(currentID), escape(folder), folderMimeType),
			"files(id, name)")
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}
		if len(result) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}
		currentID = result[0].Id
	}
	return currentID, nil
}

// Folder exposes one Drive folder as an ingest.RemoteSource.
func (s *Service) Folder(folderID string) *FolderSource {
	return &FolderSource{service: s, folderID: folderID}
}

type FolderSource struct {
	service  *Service
	folderID string
}

var _ ingest.RemoteSource = (*FolderSource)(nil)

// ListFiles skips sub-folders and Google-native documents, which cannot be
// downloaded as-is.
func (f *FolderSource) ListFiles(ctx context.Context) ([]ingest.RemoteFile, error) {
	files, err := f.service.ListFiles(ctx, f.folderID)
	if err != nil {
		return nil, err
	}
	out := make([]ingest.RemoteFile, 0, len(files))
	for _, file := range files {
		if strings.HasPrefix(file.MimeType, "application/vnd.google-apps.") {
			continue
		}
		out = append(out, ingest.RemoteFile{ID: file.ID, Name: file.Name, ModTime: file.ModifiedTime})
	}
	return out, nil
}

func (f *FolderSource) Download(ctx context.Context, file ingest.RemoteFile, w io.Writer) error {
	return f.service.DownloadFile(ctx, file.ID, w)
}

// escape quotes a value for a Drive query string.
func escape(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `'`, `\'`)
}
