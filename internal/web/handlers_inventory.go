package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/factoryinv/internal/core"
	"github.com/JonMunkholm/factoryinv/internal/i18n"
	"github.com/JonMunkholm/factoryinv/internal/inventory"
	"github.com/JonMunkholm/factoryinv/internal/sheet"
)

// maxJSONBody bounds batch and patch request bodies.
const maxJSONBody = 8 << 20

var errFileTooLarge = errors.New("file too large")

type listResponse struct {
	Data    []inventory.Row `json:"data"`
	Success bool            `json:"success"`
	Total   int             `json:"total"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type importResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*core.ImportResult
}

// printer returns a message printer for the request's Accept-Language,
// falling back to the configured locale.
func (s *Server) printer(r *http.Request) *i18n.Printer {
	tag := s.locale
	if al := r.Header.Get("Accept-Language"); al != "" {
		tag = i18n.ParseLocale(al)
	}
	return i18n.NewPrinter(tag)
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := inventory.QueryFromValues(r.URL.Query())

	rows, err := s.service.Load(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Data: rows, Success: true, Total: len(rows)})
}

func (s *Server) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	var rows []inventory.Row
	if err := decodeJSON(w, r, &rows); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.service.Update(r.Context(), rows); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: s.printer(r).Sprintf(i18n.KeyUpdateSuccess)})
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var rows []inventory.Row
	if err := decodeJSON(w, r, &rows); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.service.Create(r.Context(), rows); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: s.printer(r).Sprintf(i18n.KeyCreateSuccess)})
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	var patch inventory.Row
	if err := decodeJSON(w, r, &patch); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.service.UpdateRow(r.Context(), id, patch); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: s.printer(r).Sprintf(i18n.KeyUpdateSuccess)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidRequest, err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile, 0)
		return
	}
	defer file.Close()

	res, err := s.service.Import(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		Success:      true,
		Message:      s.printer(r).Sprintf(i18n.KeyImportSuccess, res.Inserted),
		ImportResult: res,
	})
}

// handleExport buffers the whole file so a failed export can still answer
// with a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := sheet.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	q := inventory.QueryFromValues(r.URL.Query())

	var buf bytes.Buffer
	n, err := s.service.Export(r.Context(), q, format, &buf)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": s.service.ExportFilename(format),
	})
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Row-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}
