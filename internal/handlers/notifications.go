package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ukydev/worx-notes/internal/notify"
)

// APINotifications returns the active notifications of the caller's browser
// session. Callers without one have no stack.
func (s *Server) APINotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		writeJSON(w, http.StatusOK, []notify.Notification{})
		return
	}
	writeJSON(w, http.StatusOK, sess.Toaster().Active())
}

// APIDismiss removes one notification of the caller's session early.
func (s *Server) APIDismiss(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok || !sess.Toaster().Dismiss(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DismissPage closes one toast from the page. Script callers asking for
// JSON get 204 or 404; form posts are redirected to next.
func (s *Server) DismissPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.session(r)
	found := sess.Toaster().Dismiss(r.PathValue("id"))
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		if !found {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, localPath(r.FormValue("next")), http.StatusSeeOther)
}

// localPath returns p when it is a path on this site, else "/".
func localPath(p string) string {
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || !strings.HasPrefix(u.Path, "/") ||
		strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return u.RequestURI()
}
