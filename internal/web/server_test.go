package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/factoryinv/internal/config"
	"github.com/JonMunkholm/factoryinv/internal/core"
	"github.com/JonMunkholm/factoryinv/internal/grid"
	"github.com/JonMunkholm/factoryinv/internal/inventory"
	"github.com/JonMunkholm/factoryinv/internal/sheet"
)

// memRepo is an in-memory core.Repository.
type memRepo struct {
	mu       sync.Mutex
	rows     []inventory.Row
	batchErr error
	pingErr  error
	created  [][]inventory.Row
	updated  [][]inventory.Row
}

func (m *memRepo) List(ctx context.Context, q inventory.Query) ([]inventory.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return inventory.CloneRows(m.rows), nil
}

func (m *memRepo) UpdateBatch(ctx context.Context, rows []inventory.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, rows)
	return m.batchErr
}

func (m *memRepo) CreateBatch(ctx context.Context, rows []inventory.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, rows)
	if m.batchErr != nil {
		return m.batchErr
	}
	m.rows = append(m.rows, inventory.CloneRows(rows)...)
	return nil
}

func (m *memRepo) UpdateRow(ctx context.Context, row inventory.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, []inventory.Row{row})
	return m.batchErr
}

func (m *memRepo) Ping(ctx context.Context) error { return m.pingErr }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
		Grid:   config.GridConfig{PageSize: grid.DefaultPageSize, Locale: "ja"},
	}
}

func newTestServer(t *testing.T, repo *memRepo, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	svc := core.NewService(repo, core.Options{})
	reg := core.NewSessionRegistry(svc, grid.NewProjection(grid.TieBreakStable, grid.DefaultLocale), time.Minute)
	s := NewServer(svc, reg, cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, &memRepo{}, nil), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]any](t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestList(t *testing.T) {
	repo := &memRepo{rows: []inventory.Row{
		{inventory.IDField: "1", inventory.FieldCompanyCode: "C01"},
		{inventory.IDField: "2", inventory.FieldCompanyCode: "C02"},
	}}
	rec := do(t, newTestServer(t, repo, nil), http.MethodGet, "/api/inventory?searchKeyword=C", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[listResponse](t, rec)
	if !resp.Success || resp.Total != 2 || len(resp.Data) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestBatchEndpoints(t *testing.T) {
	rejected := &inventory.BatchError{Errors: []inventory.CommitError{
		{Code: inventory.CodeUniqueViolation, UUID: "2", Level: inventory.LevelError},
	}}

	tests := []struct {
		name     string
		method   string
		body     any
		batchErr error
		status   int
		wantCode string
	}{
		{"update ok", http.MethodPut, []inventory.Row{{inventory.IDField: "1"}}, nil, http.StatusOK, ""},
		{"create ok", http.MethodPost, []inventory.Row{{inventory.IDField: "1"}}, nil, http.StatusOK, ""},
		{"update rejected", http.MethodPut, []inventory.Row{{inventory.IDField: "2"}}, rejected, http.StatusUnprocessableEntity, ""},
		{"create rejected", http.MethodPost, []inventory.Row{{inventory.IDField: "2"}}, rejected, http.StatusUnprocessableEntity, ""},
		{"bad json", http.MethodPut, "{not json", nil, http.StatusBadRequest, "REQ003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &memRepo{batchErr: tt.batchErr}, nil)
			rec := do(t, s, tt.method, "/api/inventory/batch", tt.body)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			switch {
			case tt.status == http.StatusOK:
				if resp := decode[successResponse](t, rec); !resp.Success || resp.Message == "" {
					t.Errorf("response = %+v", resp)
				}
			case tt.status == http.StatusUnprocessableEntity:
				got := decode[inventory.BatchError](t, rec)
				if len(got.Errors) != 1 || got.Errors[0] != rejected.Errors[0] {
					t.Errorf("errorList = %+v", got.Errors)
				}
			default:
				if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestUpdateRow(t *testing.T) {
	repo := &memRepo{}
	rec := do(t, newTestServer(t, repo, nil), http.MethodPut, "/api/inventory/abc",
		inventory.Row{inventory.FieldHulftID: "H1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if len(repo.updated) != 1 || repo.updated[0][0].ID() != "abc" || repo.updated[0][0].Get(inventory.FieldHulftID) != "H1" {
		t.Errorf("repository saw %v", repo.updated)
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, content)
	} else {
		mw.WriteField("other", "x")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImport(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		maxSize  int64
		status   int
		wantCode string
	}{
		{"csv", "factories.csv", "会社コード,商品工場コード\nC01,P1\nC02,P2\n", 0, http.StatusOK, ""},
		{"unsupported", "factories.xls", "x", 0, http.StatusUnsupportedMediaType, "IMP001"},
		{"no rows", "factories.csv", "会社コード\n", 0, http.StatusBadRequest, "IMP003"},
		{"no file", "", "", 0, http.StatusBadRequest, "IMP007"},
		{"too large", "big.csv", strings.Repeat("x", 4096), 512, 0, "IMP006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.maxSize > 0 {
				cfg.Import.MaxFileSize = tt.maxSize
			}
			repo := &memRepo{}
			s := newTestServer(t, repo, cfg)

			body, contentType := multipartBody(t, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/api/inventory/import", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			if tt.status != 0 && rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.wantCode == "" {
				resp := decode[importResponse](t, rec)
				if resp.ImportResult == nil || resp.Inserted != 2 {
					t.Errorf("response = %+v", resp)
				}
				if len(repo.created) != 1 || len(repo.created[0]) != 2 {
					t.Errorf("repository saw %v", repo.created)
				}
				return
			}
			if rec.Code < 400 {
				t.Fatalf("status = %d, want an error", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestExport(t *testing.T) {
	repo := &memRepo{rows: []inventory.Row{{inventory.IDField: "1", inventory.FieldCompanyCode: "C01"}}}
	s := newTestServer(t, repo, nil)

	rec := do(t, s, http.MethodGet, "/api/inventory/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != sheet.ContentTypeXLSX {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "filename") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-Row-Count") != "1" {
		t.Errorf("X-Row-Count = %q", rec.Header().Get("X-Row-Count"))
	}

	rec = do(t, s, http.MethodGet, "/api/inventory/export?format=csv", nil)
	if !strings.Contains(rec.Body.String(), "C01") || rec.Header().Get("Content-Type") != sheet.ContentTypeCSV {
		t.Errorf("csv export = %q (%s)", rec.Body, rec.Header().Get("Content-Type"))
	}

	rec = do(t, s, http.MethodGet, "/api/inventory/export?format=ods", nil)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("ods export status = %d", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, &memRepo{}, cfg)

	if rec := do(t, s, http.MethodGet, "/api/inventory", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ImportLimit: 1}
	s := newTestServer(t, &memRepo{}, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "RATE001" {
		t.Errorf("code = %q", got.Code)
	}
}
