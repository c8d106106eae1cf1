package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "list", "form", "detail", "print", "notfound"}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return models.EmptyValue
		}
		return t.Local().Format("Jan 2, 2006 3:04 PM")
	},
	"orEmpty": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return models.EmptyValue
		}
		return s
	},
	"mileage": func(n int) string {
		if n == 0 {
			return models.EmptyValue
		}
		return fmt.Sprintf("%d", n)
	},
}

type pageSet struct {
	pages map[string]*template.Template
}

func mustParsePages() *pageSet {
	set := &pageSet{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		set.pages[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return set
}

// pageData is what the layout renders around every page.
type pageData struct {
	Title  string
	Toasts []notify.Notification
	Next   string // where a dismissed toast returns to without script
	Data   any
}

// render executes a page into a buffer first so a template error still
// produces a clean 500. Toasts come from the request's session.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	tmpl, ok := s.pages.pages[name]
	if !ok {
		http.Error(w, "Unknown page", http.StatusInternalServerError)
		return
	}
	page := pageData{Title: title, Next: "/", Data: data}
	if sess, ok := s.session(r); ok {
		page.Toasts = sess.Toaster().Active()
	}
	if r.Method == http.MethodGet {
		page.Next = r.URL.RequestURI()
	}
	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "layout.html", page)
	if err != nil {
		log.WithError(err).WithField("page", name).Error("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
