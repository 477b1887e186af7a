package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/factoryinv/internal/grid"
	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

var _ grid.Backend = (*Client)(nil)

func TestClient_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/inventory" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("searchKeyword"); got != "東京" {
			t.Errorf("searchKeyword = %q", got)
		}
		if got := r.Header.Get("X-API-Key"); got != "k1" {
			t.Errorf("X-API-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"uuid":"1","companyCode":"C01"}],"success":true,"total":1}`)
	}))
	defer srv.Close()

	rows, err := New(srv.URL, "k1").Load(context.Background(), inventory.Query{SearchKeyword: "東京"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 || rows[0].ID() != "1" || rows[0].Get("companyCode") != "C01" {
		t.Errorf("rows = %v", rows)
	}
}

func TestClient_LoadEmptyIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":null,"success":true,"total":0}`)
	}))
	defer srv.Close()

	rows, err := New(srv.URL, "").Load(context.Background(), inventory.Query{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rows == nil {
		t.Error("Load returned nil slice")
	}
}

func TestClient_UpdateBatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/inventory/batch" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var rows []inventory.Row
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil || len(rows) != 2 {
			t.Errorf("body rows = %v, err = %v", rows, err)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"errorList":[{"code":"23505","uuid":"b","level":"E"}]}`)
	}))
	defer srv.Close()

	err := New(srv.URL, "").Update(context.Background(), []inventory.Row{
		{inventory.IDField: "a"},
		{inventory.IDField: "b"},
	})
	var batchErr *inventory.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Update error = %v, want *inventory.BatchError", err)
	}
	want := inventory.CommitError{Code: "23505", UUID: "b", Level: inventory.LevelError}
	if len(batchErr.Errors) != 1 || batchErr.Errors[0] != want {
		t.Errorf("errors = %+v", batchErr.Errors)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		wantCode string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"missing API key","code":"AUTH001"}`, ErrUnauthorized, ""},
		{"not found", http.StatusNotFound, `{"message":"gone","code":"SES003"}`, ErrNotFound, ""},
		{"api error", http.StatusServiceUnavailable, `{"message":"busy","code":"IMP004"}`, nil, "IMP004"},
		{"plain text", http.StatusBadGateway, "bad gateway", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New(srv.URL, "").Create(context.Background(), []inventory.Row{{inventory.IDField: "a"}})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
			if tt.wantCode != "" {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode || apiErr.Status != tt.status {
					t.Errorf("error = %#v, want APIError %s", err, tt.wantCode)
				}
			}
		})
	}
}

func TestClient_Import(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "factories.csv" || string(data) != "会社コード\nC01\n" {
			t.Errorf("upload = %q %q", hdr.Filename, data)
		}
		io.WriteString(w, `{"success":true,"inserted":1,"skipped":0}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, "").Import(context.Background(), "factories.csv", bytes.NewBufferString("会社コード\nC01\n"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("Inserted = %d", res.Inserted)
	}
}

func TestClient_Export(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("productFactoryCode") != "P1" || q.Get("format") != "csv" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		io.WriteString(w, "PK-workbook")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := New(srv.URL, "").Export(context.Background(), inventory.Query{ProductFactoryCode: "P1"}, "csv", &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != int64(len("PK-workbook")) || buf.String() != "PK-workbook" {
		t.Errorf("Export wrote %d bytes %q", n, buf.String())
	}
}

func TestClient_DrivesGridSession(t *testing.T) {
	var saved []inventory.Row
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"data":[{"uuid":"1","companyCode":"A"}],"success":true,"total":1}`)
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&saved)
			io.WriteString(w, `{"success":true}`)
		}
	}))
	defer srv.Close()

	s := grid.NewSession(New(srv.URL, ""), nil)
	ctx := context.Background()
	if err := s.Refresh(ctx, inventory.Query{}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	s.Open()
	if err := s.SetField("1", "companyCode", "B"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(saved) != 1 || saved[0].Get("companyCode") != "B" {
		t.Errorf("server saw %v", saved)
	}
}
