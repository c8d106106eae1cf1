package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/form"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
	"github.com/ukydev/worx-notes/internal/prefs"
	"github.com/ukydev/worx-notes/internal/views"
)

const (
	maxUploadBytes = 10 << 20

	rejectedFileMessage = "Please upload a text (.txt) file."
)

type fieldLabel struct {
	Key   string
	Label string
}

var (
	corners = []fieldLabel{{"lf", "LF"}, {"rf", "RF"}, {"lr", "LR"}, {"rr", "RR"}}

	pressures = []fieldLabel{
		{"front_left_in", "Front Left In"},
		{"front_right_in", "Front Right In"},
		{"rear_left_in", "Rear Left In"},
		{"rear_right_in", "Rear Right In"},
		{"front_out", "Front Out"},
		{"rear_out", "Rear Out"},
	}

	listColumns = []fieldLabel{
		{views.SortCreatedAt, "Created"},
		{views.SortRONumber, "RO #"},
		{views.SortTechnicianName, "Technician"},
		{views.SortCustomerFirstName, "First Name"},
		{views.SortCustomerLastName, "Last Name"},
	}
)

type homePage struct {
	Technician string
	Suggestion suggestionForm
}

type listColumn struct {
	Label  string
	Href   string
	Active bool
	Dir    string
}

type listPage struct {
	Sheets    []models.RepairSheet
	Sort      views.SortState
	Search    string
	Columns   []listColumn
	ExportURL string
	Error     string
}

type formPage struct {
	Action       string
	Edit         bool
	ID           string
	Values       map[string]string
	Errors       []string
	ExistingFile string
	Notice       string
	Corners      []fieldLabel
	Pressures    []fieldLabel

	title string
}

type note struct {
	Field string
	Label string
	Text  string
}

type detailPage struct {
	Sheet    models.RepairSheet
	Customer string
	Groups   []views.MeasurementGroup
	Notes    []note
}

type notFoundPage struct {
	ID string
}

// submission is a parsed create or save request.
type submission struct {
	values url.Values
	upload *form.Upload
	toggle models.Axle
}

// Home is the landing page.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home", "Home", homePage{
		Technician: s.prefs.Technician(w, r),
		Suggestion: suggestionForm{Enabled: s.feedback != nil},
	})
}

// ListPage renders the searchable, sortable list.
func (s *Server) ListPage(w http.ResponseWriter, r *http.Request) {
	v := s.listFromQuery(r)
	data := listPage{Sort: v.Sort(), Search: v.Search(), ExportURL: "/repairs/export.xlsx?" + listQuery(v.Sort(), v.Search())}
	for _, c := range listColumns {
		next := data.Sort.Toggle(c.Key)
		data.Columns = append(data.Columns, listColumn{
			Label:  c.Label,
			Href:   "/repairs?" + listQuery(next, data.Search),
			Active: data.Sort.Field == c.Key,
			Dir:    data.Sort.Dir(),
		})
	}

	status := http.StatusOK
	if err := v.Load(r.Context()); err != nil {
		log.WithError(err).Error("Failed to load repair sheets")
		status = http.StatusInternalServerError
		data.Error = "Repair sheets could not be loaded."
	}
	data.Sheets = v.Visible()
	s.render(w, r, status, "list", "Repair Sheets", data)
}

func (s *Server) listFromQuery(r *http.Request) *views.ListView {
	q := r.URL.Query()
	v := views.NewListView(s.repo, s.notifier(r))
	v.SetSort(views.ParseSort(q.Get("sort"), q.Get("dir")))
	v.SetSearch(q.Get("q"))
	return v
}

func listQuery(sort views.SortState, search string) string {
	q := url.Values{"sort": {sort.Field}, "dir": {sort.Dir()}}
	if search != "" {
		q.Set("q", search)
	}
	return q.Encode()
}

// NewPage renders an empty form, pre-filled with the remembered technician.
func (s *Server) NewPage(w http.ResponseWriter, r *http.Request) {
	c := form.New(s.repo, s.notifier(r))
	if tech := s.prefs.Technician(w, r); tech != "" {
		c.Set("technician_name", tech)
	}
	s.renderForm(w, r, http.StatusOK, "", c.Draft(), nil)
}

// Create submits a new repair sheet from a multipart form.
func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	sub, err := readSubmission(r)
	if err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	c := form.New(s.repo, s.notifier(r))
	c.Preferences = prefs.ResponseSaver{Store: s.prefs, W: w}
	applyValues(c.Set, sub.values)

	if sub.toggle != "" {
		c.ToggleBrakeUnit(sub.toggle)
		s.renderToggled(w, r, "", c.Draft(), sub.upload)
		return
	}
	var errs []string
	if sub.upload != nil {
		// a rejected file is dropped and the sheet is still submitted
		if err := c.Attach(*sub.upload); err != nil {
			errs = append(errs, rejectedFileMessage)
		}
	}

	c.OnComplete = func(models.RepairSheet) {
		http.Redirect(w, r, "/repairs", http.StatusSeeOther)
	}
	if _, err := c.Submit(r.Context()); err != nil {
		s.renderForm(w, r, statusFor(err), "", c.Draft(), append(errs, err.Error()))
	}
}

// DetailPage shows one sheet, or its edit form with ?mode=edit.
func (s *Server) DetailPage(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("mode") == "edit" {
		if err := v.Edit(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.renderForm(w, r, http.StatusOK, r.PathValue("id"), v.Draft(), nil)
		return
	}

	sheet := v.Sheet()
	s.render(w, r, http.StatusOK, "detail", "RO "+sheet.RONumber, detailPage{
		Sheet:    sheet,
		Customer: sheet.CustomerDisplayName(),
		Groups:   views.Measurements(sheet),
		Notes: []note{
			{"customer_concern", "Customer Concern", sheet.CustomerConcern},
			{"recommendations", "Recommendations", sheet.Recommendations},
			{"shop_recommendations", "Shop Recommendations", sheet.ShopRecommendations},
		},
	})
}

// Save overwrites an existing sheet from a multipart form.
func (s *Server) Save(w http.ResponseWriter, r *http.Request) {
	sub, err := readSubmission(r)
	if err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := v.Edit(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	applyValues(v.Set, sub.values)

	if sub.toggle != "" {
		if err := v.ToggleBrakeUnit(sub.toggle); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.renderToggled(w, r, id, v.Draft(), sub.upload)
		return
	}
	var errs []string
	if sub.upload != nil {
		err := v.Attach(*sub.upload)
		switch {
		case errors.Is(err, form.ErrUnsupportedFile):
			errs = append(errs, rejectedFileMessage)
		case err != nil:
			http.Error(w, err.Error(), statusFor(err))
			return
		}
	}

	if _, err := v.Save(r.Context()); err != nil {
		s.renderForm(w, r, statusFor(err), id, v.Draft(), append(errs, err.Error()))
		return
	}
	http.Redirect(w, r, "/repairs/"+id, http.StatusSeeOther)
}

// DeletePage deletes a sheet when the form carries confirm=yes.
func (s *Server) DeletePage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	confirmed := views.ConfirmFunc(func(string) bool { return r.PostForm.Get("confirm") == "yes" })
	err := v.Delete(r.Context(), confirmed)
	switch {
	case errors.Is(err, views.ErrNotConfirmed):
		http.Redirect(w, r, "/repairs/"+r.PathValue("id"), http.StatusSeeOther)
	case err != nil:
		http.Error(w, err.Error(), statusFor(err))
	default:
		http.Redirect(w, r, "/repairs", http.StatusSeeOther)
	}
}

// CopyPage reports the outcome of a clipboard write done in the browser
// and raises the matching toast. An empty error means the write succeeded.
func (s *Server) CopyPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	err := v.Copy(r.PostForm.Get("field"), reportedClipboard{err: r.PostForm.Get("error")})
	if errors.Is(err, views.ErrNotCopyable) || errors.Is(err, views.ErrInvalidMode) {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reportedClipboard replays the result of a browser clipboard write.
type reportedClipboard struct {
	err string
}

func (c reportedClipboard) WriteText(string) error {
	if c.err != "" {
		return errors.New(c.err)
	}
	return nil
}

// PrintPage renders the condensed printable layout.
func (s *Server) PrintPage(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	model, err := v.Print()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.render(w, r, http.StatusOK, "print", "Print RO "+model.Sheet.RONumber, model)
}

// File serves the diagnostic text of a sheet.
func (s *Server) File(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	sheet := v.Sheet()
	if !sheet.HasAttachment() {
		http.Error(w, "No diagnostic file", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", sheet.DiagnosticFileName))
	io.WriteString(w, v.DiagnosticText())
}

// loadDetail loads the sheet named by the {id} path value. It writes the
// not-found page or an error itself and reports false when it did.
func (s *Server) loadDetail(w http.ResponseWriter, r *http.Request) (*views.DetailView, bool) {
	id := r.PathValue("id")
	v := views.NewDetailView(s.repo, s.notifier(r))
	if err := v.Load(r.Context(), id); err != nil {
		if errors.Is(err, views.ErrNotFound) {
			s.render(w, r, http.StatusNotFound, "notfound", "Not Found", notFoundPage{ID: id})
			return nil, false
		}
		log.WithError(err).WithField("id", id).Error("Failed to load repair sheet")
		http.Error(w, "Failed to load repair sheet", http.StatusInternalServerError)
		return nil, false
	}
	return v, true
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, id string, draft models.RepairSheet, errs []string) {
	page := newFormPage(id, draft, errs)
	s.render(w, r, status, "form", page.title, page)
}

// renderToggled re-renders the form after a brake unit toggle. A chosen
// file is not carried into the new page and has to be picked again.
func (s *Server) renderToggled(w http.ResponseWriter, r *http.Request, id string, draft models.RepairSheet, upload *form.Upload) {
	page := newFormPage(id, draft, nil)
	if upload != nil {
		page.Notice = fmt.Sprintf("Diagnostic file %s must be re-selected.", upload.Filename)
		notify.Info(s.notifier(r), "Re-select diagnostic file", page.Notice)
	}
	s.render(w, r, http.StatusOK, "form", page.title, page)
}

func newFormPage(id string, draft models.RepairSheet, errs []string) formPage {
	page := formPage{
		Action:       "/repairs",
		Values:       form.Values(draft),
		Errors:       errs,
		ExistingFile: draft.DiagnosticFileName,
		Corners:      corners,
		Pressures:    pressures,
		title:        "New Repair Sheet",
	}
	if id != "" {
		page.Action = "/repairs/" + id
		page.Edit = true
		page.ID = id
		page.title = "Edit RO " + draft.RONumber
	}
	return page
}

func readSubmission(r *http.Request) (submission, error) {
	err := r.ParseMultipartForm(maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return submission{}, err
	}

	sub := submission{values: r.PostForm}
	if axle := models.Axle(r.PostForm.Get("toggle")); models.IsValidAxle(axle) {
		sub.toggle = axle
	}

	file, header, err := r.FormFile("diagnostic_file")
	if errors.Is(err, http.ErrMissingFile) {
		return sub, nil
	}
	if err != nil {
		return submission{}, err
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return submission{}, err
	}
	sub.upload = &form.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}
	return sub, nil
}

// applyValues routes every known field present in values through set.
func applyValues(set func(name, raw string) error, values url.Values) {
	for _, name := range form.FieldNames() {
		if _, ok := values[name]; !ok {
			continue
		}
		if err := set(name, values.Get(name)); err != nil {
			log.WithError(err).WithField("field", name).Debug("Ignoring form value")
		}
	}
}
