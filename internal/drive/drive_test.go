package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/andresuchdata/autoreorder/internal/pipeline"
	"github.com/gorilla/mux"
	"google.golang.org/api/drive/v3"
)

const exportCSV = "material,posting_date,quantity\nM-1,2024-01-01,100\nM-2,2024-01-02,5\n"

type fakeFiles struct {
	files   []*drive.File
	content map[string]string
	queries []string
}

func (f *fakeFiles) list(_ context.Context, query, _ string) ([]*drive.File, error) {
	f.queries = append(f.queries, query)
	if strings.Contains(query, "mimeType='"+folderMimeType+"'") {
		if strings.Contains(query, "name='exports'") {
			return []*drive.File{{Id: "folder-1", Name: "exports"}}, nil
		}
		return nil, nil
	}
	return f.files, nil
}

func (f *fakeFiles) download(_ context.Context, fileID string) (io.ReadCloser, error) {
	body, ok := f.content[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func newFakeService() (*Service, *fakeFiles) {
	api := &fakeFiles{
		files: []*drive.File{
			{Id: "f1", Name: "movements.csv", MimeType: "text/csv", ModifiedTime: "2024-02-01T10:00:00Z"},
			{Id: "f2", Name: "notes.txt", MimeType: "text/plain"},
			{Id: "f3", Name: "Sheet", MimeType: "application/vnd.google-apps.spreadsheet"},
		},
		content: map[string]string{"f1": exportCSV},
	}
	return &Service{api: api}, api
}

type recordingRunner struct {
	got []ingest.Snapshot
}

func (r *recordingRunner) RunSnapshots(_ context.Context, snaps []ingest.Snapshot) (pipeline.Report, error) {
	r.got = snaps
	report := pipeline.Report{}
	for _, s := range snaps {
		report.Results = append(report.Results, pipeline.CycleResult{MaterialID: s.MaterialID, SourceIdentity: s.Identity})
	}
	return report, nil
}

func TestFolderSource(t *testing.T) {
	svc, _ := newFakeService()
	snaps, err := ingest.FetchAll(context.Background(), svc.Folder("folder-1"))
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(snaps) != 2 || snaps[0].MaterialID != "M-1" || snaps[1].MaterialID != "M-2" {
		t.Fatalf("snapshots = %+v", snaps)
	}
	if !strings.HasSuffix(snaps[0].Identity, "@2024-02-01T10:00:00Z") {
		t.Errorf("identity %q does not carry the modification time", snaps[0].Identity)
	}
}

func TestFindFolderByPath(t *testing.T) {
	svc, _ := newFakeService()
	ctx := context.Background()

	id, err := svc.FindFolderByPath(ctx, "/exports/")
	if err != nil || id != "folder-1" {
		t.Errorf("FindFolderByPath(exports) = %q, %v", id, err)
	}
	if id, err := svc.FindFolderByPath(ctx, ""); err != nil || id != "root" {
		t.Errorf("FindFolderByPath(\"\") = %q, %v", id, err)
	}
	if _, err := svc.FindFolderByPath(ctx, "missing"); err == nil {
		t.Error("expected error for a missing folder")
	}
}

func TestEscape(t *testing.T) {
	if got := escape(`it's`); got != `it\'s` {
		t.Errorf("escape = %s", got)
	}
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		target    string
		wantCode  int
		wantCount int
	}{
		{"list files", http.MethodGet, "/api/drive/files?path=exports", http.StatusOK, 3},
		{"run folder", http.MethodPost, "/api/drive/cycles", http.StatusOK, 2},
		{"run one material", http.MethodPost, "/api/drive/cycles?material=M-2", http.StatusOK, 1},
		{"run one file", http.MethodPost, "/api/drive/cycles?fileId=f1", http.StatusOK, 2},
		{"unknown file", http.MethodPost, "/api/drive/cycles?fileId=nope", http.StatusNotFound, 0},
		{"unknown path", http.MethodGet, "/api/drive/files?path=missing", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newFakeService()
			runner := &recordingRunner{}
			router := mux.NewRouter()
			NewHandler(svc, runner, "folder-1").RegisterRoutes(router)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			if tt.method == http.MethodGet {
				var files []File
				if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
					t.Fatal(err)
				}
				if len(files) != tt.wantCount {
					t.Errorf("files = %d, want %d", len(files), tt.wantCount)
				}
				return
			}
			if len(runner.got) != tt.wantCount {
				t.Errorf("snapshots run = %d, want %d", len(runner.got), tt.wantCount)
			}
		})
	}
}
