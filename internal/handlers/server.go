package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ukydev/worx-notes/internal/auth"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/feedback"
	"github.com/ukydev/worx-notes/internal/middleware"
	"github.com/ukydev/worx-notes/internal/notify"
	"github.com/ukydev/worx-notes/internal/prefs"
)

// Server serves the pages, the JSON API and the websockets.
type Server struct {
	repo     db.Repository
	channel  *notify.Channel
	sessions *notify.Sessions
	prefs    *prefs.Store
	feedback *feedback.Service
	pages    *pageSet
}

// Options wires the optional parts of a Server.
type Options struct {
	// Feedback backs POST /feedback and POST /api/feedback. Nil leaves both
	// routes unregistered.
	Feedback *feedback.Service
	Prefs    *prefs.Store
}

// NewServer creates the HTTP surface over a repository. Pages notify their
// browser's session; API calls without a session cookie notify channel.
func NewServer(repo db.Repository, channel *notify.Channel, sessions *notify.Sessions, opts Options) *Server {
	if opts.Prefs == nil {
		opts.Prefs = prefs.NewStore(false)
	}
	return &Server{
		repo:     repo,
		channel:  channel,
		sessions: sessions,
		prefs:    opts.Prefs,
		feedback: opts.Feedback,
		pages:    mustParsePages(),
	}
}

// Routes registers every handler. authMW guards /api/; limiter rate limits
// suggestions.
func (s *Server) Routes(authMW *middleware.AuthMiddleware, limiter *middleware.RateLimitMiddleware) http.Handler {
	mux := http.NewServeMux()
	page := s.withSession

	mux.HandleFunc("GET /health", s.Health)

	mux.HandleFunc("GET /{$}", page(s.Home))
	mux.HandleFunc("GET /repairs", page(s.ListPage))
	mux.HandleFunc("GET /repairs/export.xlsx", s.Export)
	mux.HandleFunc("GET /repairs/new", page(s.NewPage))
	mux.HandleFunc("POST /repairs", page(s.Create))
	mux.HandleFunc("GET /repairs/{id}", page(s.DetailPage))
	mux.HandleFunc("POST /repairs/{id}", page(s.Save))
	mux.HandleFunc("POST /repairs/{id}/delete", page(s.DeletePage))
	mux.HandleFunc("POST /repairs/{id}/copy", page(s.CopyPage))
	mux.HandleFunc("GET /repairs/{id}/print", page(s.PrintPage))
	mux.HandleFunc("GET /repairs/{id}/file", s.File)
	mux.HandleFunc("POST /notifications/{id}/dismiss", page(s.DismissPage))

	mux.HandleFunc("GET /ws/repairs", s.WatchRepairs)
	mux.HandleFunc("GET /ws/notifications", s.WatchNotifications)

	limit := func(h http.Handler) http.Handler { return h }
	if limiter != nil {
		limit = limiter.RateLimit(10, 60)
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/repairs", s.APIList)
	api.HandleFunc("POST /api/repairs", s.APICreate)
	api.HandleFunc("GET /api/repairs/{id}", s.APIGet)
	api.HandleFunc("PUT /api/repairs/{id}", s.APIUpdate)
	api.HandleFunc("DELETE /api/repairs/{id}", s.APIDelete)
	api.HandleFunc("POST /api/repairs/{id}/copy", s.APICopy)
	api.HandleFunc("GET /api/notifications", s.APINotifications)
	api.HandleFunc("DELETE /api/notifications/{id}", s.APIDismiss)
	if s.feedback != nil {
		mux.Handle("POST /feedback", limit(page(s.Suggest)))
		api.Handle("POST /api/feedback", limit(feedback.NewHandler(s.feedback)))
	}

	var apiHandler http.Handler = api
	if authMW != nil {
		apiHandler = authMW.Authenticate(authMW.RequireRole(auth.RoleAnon)(api))
	}
	mux.Handle("/api/", apiHandler)

	return mux
}

type sessionKey struct{}

// withSession binds the browser's notification session to the request,
// issuing a session cookie on first visit.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Get(s.prefs.Session(w, r))
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}
}

// session returns the request's session. Requests outside page routes only
// find a session that already exists.
func (s *Server) session(r *http.Request) (*notify.Session, bool) {
	if sess, ok := r.Context().Value(sessionKey{}).(*notify.Session); ok {
		return sess, true
	}
	id, ok := s.prefs.SessionID(r)
	if !ok {
		return nil, false
	}
	return s.sessions.Lookup(id)
}

// notifier is where the request's toasts go.
func (s *Server) notifier(r *http.Request) notify.Notifier {
	if sess, ok := s.session(r); ok {
		return sess
	}
	return s.channel
}

// Health reports that the process is serving.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
