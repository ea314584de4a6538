package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type mockExporter struct {
	data []byte
	err  error
}

func (m *mockExporter) ExportJSON(_ context.Context) ([]byte, error) {
	return m.data, m.err
}

type mockImporter struct {
	calls  int
	body   []byte
	result *export.ImportResult
	err    error
}

func (m *mockImporter) Import(_ context.Context, body []byte) (*export.ImportResult, error) {
	m.calls++
	m.body = body
	return m.result, m.err
}

type mockHistoryStore struct {
	records   []*models.BackupRecord
	err       error
	lastLimit int
}

func (m *mockHistoryStore) ListBackupRecords(_ context.Context, limit int) ([]*models.BackupRecord, error) {
	m.lastLimit = limit
	return m.records, m.err
}

// mockArchiver implements BackupArchiver over a map.
type mockArchiver struct {
	docs       map[string][]byte
	listErr    error
	createErr  error
	restoreErr error
	restored   string
	result     *export.ImportResult
}

func newMockArchiver() *mockArchiver {
	return &mockArchiver{docs: map[string][]byte{}}
}

func (m *mockArchiver) Kind() string { return archive.KindLocal }

func (m *mockArchiver) List(_ context.Context) ([]archive.Object, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	objects := []archive.Object{}
	for name, data := range m.docs {
		objects = append(objects, archive.Object{Name: name, Size: int64(len(data))})
	}
	return objects, nil
}

func (m *mockArchiver) Get(_ context.Context, name string) ([]byte, error) {
	data, ok := m.docs[name]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return data, nil
}

func (m *mockArchiver) Delete(_ context.Context, name string) error {
	if _, ok := m.docs[name]; !ok {
		return archive.ErrNotFound
	}
	delete(m.docs, name)
	return nil
}

func (m *mockArchiver) Create(_ context.Context) (*archive.Object, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	name := "hearth-backup-20250101T000000Z-abcdef12.json"
	m.docs[name] = []byte("{}")
	return &archive.Object{Name: name, Size: 2, ModifiedAt: time.Now()}, nil
}

func (m *mockArchiver) Restore(_ context.Context, name string) (*export.ImportResult, error) {
	if _, ok := m.docs[name]; !ok {
		return nil, archive.ErrNotFound
	}
	m.restored = name
	return m.result, m.restoreErr
}

type backupTestDeps struct {
	exporter *mockExporter
	importer *mockImporter
	history  *mockHistoryStore
	archiver *mockArchiver
}

func newBackupTestDeps() *backupTestDeps {
	return &backupTestDeps{
		exporter: &mockExporter{data: []byte(`{"tables":{"rooms":[]}}`)},
		importer: &mockImporter{result: &export.ImportResult{Counts: export.ImportedCounts{Rooms: 2, Devices: 3}}},
		history:  &mockHistoryStore{records: []*models.BackupRecord{}},
		archiver: newMockArchiver(),
	}
}

func setupBackupTestRouter(d *backupTestDeps, withArchive bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var archiver BackupArchiver
	if withArchive {
		archiver = d.archiver
	}
	handler := NewBackupHandler(d.exporter, d.importer, d.history, archiver, 1024, zerolog.Nop())
	handler.RegisterRoutes(r.Group("/api"))
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response %q: %v", w.Body.String(), err)
	}
	return resp.Error, resp.Code
}

func TestBackupExport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/backup/export", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if got := w.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", got)
		}
		if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="backup.json"` {
			t.Errorf("unexpected Content-Disposition %q", got)
		}
		if w.Body.String() != string(d.exporter.data) {
			t.Errorf("expected exported document, got %s", w.Body.String())
		}
	})

	t.Run("failure", func(t *testing.T) {
		d := newBackupTestDeps()
		d.exporter.err = errors.New("connection reset")
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/backup/export", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}
		if _, code := decodeError(t, w); code != CodeExportFailed {
			t.Errorf("expected code %s, got %s", CodeExportFailed, code)
		}
	})
}

func TestBackupImport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, false)

		body := `{"tables":{}}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/import", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if string(d.importer.body) != body {
			t.Errorf("expected raw body to reach importer, got %q", d.importer.body)
		}

		var resp ImportResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Message != "Backup imported successfully" {
			t.Errorf("unexpected message %q", resp.Message)
		}
		if resp.ImportedCounts.Rooms != 2 || resp.ImportedCounts.Devices != 3 {
			t.Errorf("unexpected counts %+v", resp.ImportedCounts)
		}
		if !strings.Contains(w.Body.String(), `"importedCounts":{"rooms":2,"devices":3,"audioLevels":0`) {
			t.Errorf("expected camelCase counts, got %s", w.Body.String())
		}
	})

	t.Run("validation error", func(t *testing.T) {
		d := newBackupTestDeps()
		d.importer.err = &export.ValidationError{
			Code:    export.CodeInvalidRoomData,
			Message: "rooms[1].name must be a non-empty string",
		}
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/import", strings.NewReader(`{}`))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
		msg, code := decodeError(t, w)
		if code != export.CodeInvalidRoomData {
			t.Errorf("expected code %s, got %s", export.CodeInvalidRoomData, code)
		}
		if !strings.Contains(msg, "rooms[1]") {
			t.Errorf("expected message to identify the row, got %q", msg)
		}
	})

	t.Run("datastore error", func(t *testing.T) {
		d := newBackupTestDeps()
		d.importer.err = errors.New("insert devices: foreign key violation")
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/import", strings.NewReader(`{}`))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}
		msg, code := decodeError(t, w)
		if code != CodeImportFailed {
			t.Errorf("expected code %s, got %s", CodeImportFailed, code)
		}
		if !strings.Contains(msg, "foreign key violation") {
			t.Errorf("expected underlying message to be appended, got %q", msg)
		}
	})

	t.Run("payload too large", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/import", bytes.NewReader(bytes.Repeat([]byte("a"), 2048)))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected status 413, got %d", w.Code)
		}
		if _, code := decodeError(t, w); code != CodePayloadTooLarge {
			t.Errorf("expected code %s, got %s", CodePayloadTooLarge, code)
		}
		if d.importer.calls != 0 {
			t.Error("importer must not be called for oversized bodies")
		}
	})

	t.Run("chunked payload too large", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		body := struct{ *bytes.Reader }{bytes.NewReader(bytes.Repeat([]byte("a"), 2048))}
		req, _ := http.NewRequest("POST", "/api/backup/import", body)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected status 413, got %d", w.Code)
		}
		if d.importer.calls != 0 {
			t.Error("importer must not be called for oversized bodies")
		}
	})
}

func TestBackupHistory(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"default limit", "", http.StatusOK, 50},
		{"custom limit", "?limit=10", http.StatusOK, 10},
		{"capped limit", "?limit=10000", http.StatusOK, 500},
		{"invalid limit", "?limit=abc", http.StatusBadRequest, 0},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newBackupTestDeps()
			d.history.records = []*models.BackupRecord{{ID: 7, CreatedAt: created}}
			r := setupBackupTestRouter(d, false)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/backup/history"+tt.query, nil)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if d.history.lastLimit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, d.history.lastLimit)
			}
			if !strings.Contains(w.Body.String(), `"id":7`) {
				t.Errorf("expected record in response, got %s", w.Body.String())
			}
		})
	}

	t.Run("store error", func(t *testing.T) {
		d := newBackupTestDeps()
		d.history.err = errors.New("db down")
		r := setupBackupTestRouter(d, false)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/backup/history", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}
	})
}

func TestBackupArchives_NotConfigured(t *testing.T) {
	d := newBackupTestDeps()
	r := setupBackupTestRouter(d, false)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/backup/archives"},
		{"POST", "/api/backup/archives"},
		{"GET", "/api/backup/archives/a.json"},
		{"POST", "/api/backup/archives/a.json/restore"},
		{"DELETE", "/api/backup/archives/a.json"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(rt.method, rt.path, nil)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Fatalf("expected status 404, got %d", w.Code)
			}
			if _, code := decodeError(t, w); code != CodeArchiveNotConfigured {
				t.Errorf("expected code %s, got %s", CodeArchiveNotConfigured, code)
			}
		})
	}
}

func TestBackupArchives(t *testing.T) {
	t.Run("create then list", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/archives", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", "/api/backup/archives", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "hearth-backup-20250101T000000Z-abcdef12.json") {
			t.Errorf("expected archive in listing, got %s", w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"sink":"local"`) {
			t.Errorf("expected sink kind in listing, got %s", w.Body.String())
		}
	})

	t.Run("create failure", func(t *testing.T) {
		d := newBackupTestDeps()
		d.archiver.createErr = errors.New("disk full")
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/archives", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}
	})

	t.Run("download", func(t *testing.T) {
		d := newBackupTestDeps()
		d.archiver.docs["saved.json"] = []byte(`{"tables":{}}`)
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/backup/archives/saved.json", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="saved.json"` {
			t.Errorf("unexpected Content-Disposition %q", got)
		}
		if w.Body.String() != `{"tables":{}}` {
			t.Errorf("unexpected body %s", w.Body.String())
		}
	})

	t.Run("download missing", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/backup/archives/missing.json", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
		if _, code := decodeError(t, w); code != CodeArchiveNotFound {
			t.Errorf("expected code %s, got %s", CodeArchiveNotFound, code)
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, true)

		for _, name := range []string{"notes.txt", ".hidden.json", "a%20b.json"} {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/backup/archives/"+name, nil)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("%s: expected status 400, got %d", name, w.Code)
			}
			if _, code := decodeError(t, w); code != CodeInvalidArchiveName {
				t.Errorf("%s: expected code %s, got %s", name, CodeInvalidArchiveName, code)
			}
		}
	})

	t.Run("restore", func(t *testing.T) {
		d := newBackupTestDeps()
		d.archiver.docs["saved.json"] = []byte("{}")
		d.archiver.result = &export.ImportResult{Counts: export.ImportedCounts{AudioLevels: 9}}
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/archives/saved.json/restore", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if d.archiver.restored != "saved.json" {
			t.Errorf("expected saved.json to be restored, got %q", d.archiver.restored)
		}
		var resp ImportResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.ImportedCounts.AudioLevels != 9 {
			t.Errorf("unexpected counts %+v", resp.ImportedCounts)
		}
	})

	t.Run("restore invalid document", func(t *testing.T) {
		d := newBackupTestDeps()
		d.archiver.docs["broken.json"] = []byte("{")
		d.archiver.restoreErr = &export.ValidationError{Code: export.CodeMalformedJSON, Message: "malformed JSON"}
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/archives/broken.json/restore", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
		if _, code := decodeError(t, w); code != export.CodeMalformedJSON {
			t.Errorf("expected code %s, got %s", export.CodeMalformedJSON, code)
		}
	})

	t.Run("restore missing", func(t *testing.T) {
		d := newBackupTestDeps()
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/backup/archives/missing.json/restore", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		d := newBackupTestDeps()
		d.archiver.docs["old.json"] = []byte("{}")
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/backup/archives/old.json", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("DELETE", "/api/backup/archives/old.json", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404 on second delete, got %d", w.Code)
		}
	})

	t.Run("list failure", func(t *testing.T) {
		d := newBackupTestDeps()
		d.archiver.listErr = errors.New("access denied")
		r := setupBackupTestRouter(d, true)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/backup/archives", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}
	})
}
