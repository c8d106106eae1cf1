package prefs

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TechnicianCookie holds the last technician name used in this browser.
	TechnicianCookie = "autotech_technician"
	// TechnicianParam pre-fills the technician name from the URL.
	TechnicianParam = "tech"
	// SessionCookie keys the browser's notification stack.
	SessionCookie = "worx_session"

	cookieMaxAge = 365 * 24 * time.Hour
)

// Store keeps per-browser preferences in cookies.
type Store struct {
	Secure bool
}

// NewStore returns a preference store. Secure marks cookies HTTPS-only.
func NewStore(secure bool) *Store {
	return &Store{Secure: secure}
}

// Technician returns the technician name to pre-fill. A non-empty tech query
// parameter wins and replaces the stored value.
func (s *Store) Technician(w http.ResponseWriter, r *http.Request) string {
	if name := strings.TrimSpace(r.URL.Query().Get(TechnicianParam)); name != "" {
		s.SaveTechnician(w, name)
		return name
	}
	c, err := r.Cookie(TechnicianCookie)
	if err != nil {
		return ""
	}
	name, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return name
}

// SaveTechnician persists a technician name for later visits.
func (s *Store) SaveTechnician(w http.ResponseWriter, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TechnicianCookie,
		Value:    url.QueryEscape(name),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session returns the browser's session ID, issuing a new session cookie
// when the request has none.
func (s *Store) Session(w http.ResponseWriter, r *http.Request) string {
	if id, ok := s.SessionID(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// SessionID returns the session ID carried by r, if it is well formed.
func (s *Store) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// Saver persists the technician name of a completed submission.
type Saver interface {
	SaveTechnician(name string)
}

// ResponseSaver binds a Store to one response.
type ResponseSaver struct {
	Store *Store
	W     http.ResponseWriter
}

func (s ResponseSaver) SaveTechnician(name string) {
	s.Store.SaveTechnician(s.W, name)
}
