package web

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/factoryinv/internal/core"
	"github.com/JonMunkholm/factoryinv/internal/grid"
	"github.com/JonMunkholm/factoryinv/internal/i18n"
	"github.com/JonMunkholm/factoryinv/internal/inventory"
	"github.com/JonMunkholm/factoryinv/internal/logging"
)

// sessionResponse is the view model of one grid session.
type sessionResponse struct {
	ID string `json:"id"`
	grid.View
	TotalText string            `json:"totalText"`
	Message   string            `json:"message,omitempty"`
	LoadError *core.UserMessage `json:"loadError,omitempty"`
}

type cellEdit struct {
	RowID string `json:"rowId"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// viewOptions reads sort, dir, filter[field], page and pageSize.
func (s *Server) viewOptions(r *http.Request) grid.ViewOptions {
	v := r.URL.Query()
	opts := grid.ViewOptions{
		Filters:  grid.Filters{},
		PageSize: s.cfg.Grid.PageSize,
	}

	if field := v.Get("sort"); field != "" {
		dir := strings.ToLower(v.Get("dir"))
		opts.Sort = &grid.SortSpec{Field: field, Desc: dir == "desc" || dir == "descend"}
	}
	for key, vals := range v {
		field, ok := strings.CutPrefix(key, "filter[")
		if !ok || !strings.HasSuffix(field, "]") || len(vals) == 0 {
			continue
		}
		opts.Filters.Set(strings.TrimSuffix(field, "]"), vals[0])
	}
	if page, err := strconv.Atoi(v.Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if size, err := strconv.Atoi(v.Get("pageSize")); err == nil && slices.Contains(grid.PageSizeOptions, size) {
		opts.PageSize = size
	}
	return opts
}

// session looks up the {id} session, answering 404 when it is gone.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *grid.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return "", nil, false
	}
	return id, sess, true
}

func (s *Server) renderSession(w http.ResponseWriter, r *http.Request, id string, sess *grid.Session, status int, resp sessionResponse) {
	p := s.printer(r)
	opts := s.viewOptions(r)
	opts.Translator = p

	resp.ID = id
	resp.View = sess.View(opts)
	resp.TotalText = p.ShowTotal(resp.Page.RangeStart, resp.Page.RangeEnd, resp.Page.Total)
	writeJSON(w, status, resp)
}

// loadFailed logs a failed fetch and returns the message shown with the
// empty table. Load failures are not retried.
func loadFailed(r *http.Request, err error) *core.UserMessage {
	msg := core.MapError(err)
	logging.FromContext(r.Context()).Error("grid load failed", "error", err, "code", msg.Code)
	return &msg
}

// readQuery takes the query from a JSON body when one is sent, otherwise
// from the URL, otherwise fallback.
func readQuery(w http.ResponseWriter, r *http.Request, fallback inventory.Query) (inventory.Query, error) {
	if r.ContentLength > 0 {
		var q inventory.Query
		if err := decodeJSON(w, r, &q); err != nil {
			return q, err
		}
		return q, nil
	}
	if len(r.URL.Query()) > 0 {
		q := inventory.QueryFromValues(r.URL.Query())
		if q != (inventory.Query{}) {
			return q, nil
		}
	}
	return fallback, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	q, err := readQuery(w, r, inventory.Query{})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	id, sess := s.sessions.Create()
	var resp sessionResponse
	if err := sess.Refresh(r.Context(), q); err != nil {
		resp.LoadError = loadFailed(r, err)
	}
	s.renderSession(w, r, id, sess, http.StatusCreated, resp)
}

func (s *Server) handleSessionView(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q, err := readQuery(w, r, sess.Query())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var resp sessionResponse
	if err := sess.Refresh(r.Context(), q); err != nil {
		resp.LoadError = loadFailed(r, err)
	}
	s.renderSession(w, r, id, sess, http.StatusOK, resp)
}

func (s *Server) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Open()
	s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{})
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Cancel()
	s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{})
}

func (s *Server) handleSessionSetCell(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var edit cellEdit
	if err := decodeJSON(w, r, &edit); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if edit.RowID == "" || edit.Field == "" {
		s.respondError(w, r, fmt.Errorf("%w: rowId and field are required", errInvalidRequest), 0)
		return
	}
	if err := sess.SetField(edit.RowID, edit.Field, edit.Value); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{})
}

// handleSessionAddRow adds a blank row. An optional JSON object body sets
// initial values.
func (s *Server) handleSessionAddRow(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var initial inventory.Row
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &initial); err != nil {
			s.respondError(w, r, err, 0)
			return
		}
	}

	row, err := sess.AddRow()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	for field, value := range initial {
		if err := sess.SetField(row.ID(), field, value); err != nil {
			s.respondError(w, r, err, 0)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"uuid": row.ID()})
}

// handleSessionPutRow replaces the edited values of one row with the
// submitted form values.
func (s *Server) handleSessionPutRow(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var row inventory.Row
	if err := decodeJSON(w, r, &row); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := sess.PutRow(row.With(inventory.IDField, chi.URLParam(r, "rowId"))); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{})
}

// handleSessionCreate inserts rows outside the edit session and reloads.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var rows []inventory.Row
	if err := decodeJSON(w, r, &rows); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	resp := sessionResponse{Message: s.printer(r).Sprintf(i18n.KeyCreateSuccess)}
	if err := sess.Create(r.Context(), rows); err != nil {
		if !errors.Is(err, grid.ErrLoad) {
			s.respondError(w, r, err, 0)
			return
		}
		resp.LoadError = loadFailed(r, err)
	}
	s.renderSession(w, r, id, sess, http.StatusOK, resp)
}

// handleSessionSubmit saves the overlay as one batch. A rejected batch
// answers 422 with the reconciled errors in the view; the session stays
// open. A save that succeeded but could not reload answers 200 with a
// load error.
func (s *Server) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p := s.printer(r)

	err := sess.Submit(r.Context())
	var batchErr *inventory.BatchError
	switch {
	case err == nil:
		s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{Message: p.Sprintf(i18n.KeyUpdateSuccess)})
	case errors.As(err, &batchErr):
		logging.FromContext(r.Context()).Warn("grid batch rejected", "session", id, "errors", len(batchErr.Errors))
		s.renderSession(w, r, id, sess, http.StatusUnprocessableEntity, sessionResponse{Message: p.Sprintf(i18n.KeyUpdateFailed)})
	case errors.Is(err, grid.ErrSubmitInFlight):
		s.renderSession(w, r, id, sess, http.StatusConflict, sessionResponse{Message: p.Sprintf(i18n.KeySubmitInFlight)})
	case errors.Is(err, grid.ErrLoad):
		s.renderSession(w, r, id, sess, http.StatusOK, sessionResponse{
			Message:   p.Sprintf(i18n.KeyUpdateSuccess),
			LoadError: loadFailed(r, err),
		})
	default:
		s.respondError(w, r, err, 0)
	}
}
