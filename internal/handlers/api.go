package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/form"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/views"
)

// sheetRequest is the body of POST and PUT /api/repairs. Nested readings use
// the same JSON shape the API returns.
type sheetRequest struct {
	models.RepairSheet
	DiagnosticFile *fileRequest `json:"diagnostic_file,omitempty"`
}

type fileRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Content     string `json:"content"`
}

func (f *fileRequest) upload() form.Upload {
	return form.Upload{Filename: f.Filename, ContentType: f.ContentType, Content: []byte(f.Content)}
}

type validationResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// APIList returns the visible sheets for the sort, dir and q parameters.
func (s *Server) APIList(w http.ResponseWriter, r *http.Request) {
	v := s.listFromQuery(r)
	if err := v.Load(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v.Visible())
}

// APIGet returns one sheet.
func (s *Server) APIGet(w http.ResponseWriter, r *http.Request) {
	sheet, err := s.repo.FindRepairByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

// APICreate creates a sheet through the form controller.
func (s *Server) APICreate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSheet(w, r)
	if !ok {
		return
	}
	c := form.New(s.repo, s.notifier(r))
	for name, raw := range form.Values(req.RepairSheet) {
		c.Set(name, raw)
	}
	if req.DiagnosticFile != nil {
		if err := c.Attach(req.DiagnosticFile.upload()); err != nil {
			writeFailure(w, err)
			return
		}
	}

	saved, err := c.Submit(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// APIUpdate overwrites a sheet through the detail view's edit mode.
func (s *Server) APIUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSheet(w, r)
	if !ok {
		return
	}
	v := views.NewDetailView(s.repo, s.notifier(r))
	if err := v.Load(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	if err := v.Edit(); err != nil {
		writeFailure(w, err)
		return
	}
	for name, raw := range form.Values(req.RepairSheet) {
		v.Set(name, raw)
	}
	if req.DiagnosticFile != nil {
		if err := v.Attach(req.DiagnosticFile.upload()); err != nil {
			writeFailure(w, err)
			return
		}
	}

	saved, err := v.Save(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// APIDelete removes a sheet and its diagnostic file. The request itself is
// the confirmation.
func (s *Server) APIDelete(w http.ResponseWriter, r *http.Request) {
	v := views.NewDetailView(s.repo, s.notifier(r))
	if err := v.Load(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	confirmed := views.ConfirmFunc(func(string) bool { return true })
	if err := v.Delete(r.Context(), confirmed); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// responseClipboard writes copied text as the response body.
type responseClipboard struct {
	w http.ResponseWriter
}

func (c responseClipboard) WriteText(text string) error {
	c.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.w.WriteHeader(http.StatusOK)
	_, err := io.WriteString(c.w, text)
	return err
}

// APICopy returns the text of one free-text field.
func (s *Server) APICopy(w http.ResponseWriter, r *http.Request) {
	v := views.NewDetailView(s.repo, s.notifier(r))
	if err := v.Load(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	err := v.Copy(r.URL.Query().Get("field"), responseClipboard{w: w})
	if err != nil && errors.Is(err, views.ErrNotCopyable) {
		writeFailure(w, err)
		return
	}
	if err != nil {
		log.WithError(err).Warn("Failed to write copied text")
	}
}

func decodeSheet(w http.ResponseWriter, r *http.Request) (sheetRequest, bool) {
	req := sheetRequest{RepairSheet: models.NewRepairSheet()}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return sheetRequest{}, false
	}
	return req, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, form.ErrUnsupportedFile),
		errors.Is(err, form.ErrUnknownField),
		errors.Is(err, views.ErrNotCopyable):
		return http.StatusBadRequest
	case errors.Is(err, views.ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, views.ErrInvalidMode), errors.Is(err, form.ErrSubmitting):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, validationResponse{Error: verr.Error(), Fields: verr.Fields})
		return
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Repair sheet request failed")
	}
	writeError(w, status, err.Error())
}
