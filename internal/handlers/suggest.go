package handlers

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/feedback"
	"github.com/ukydev/worx-notes/internal/notify"
)

// suggestionForm is the suggestion box on the home page.
type suggestionForm struct {
	Enabled    bool
	Suggestion string
	Email      string
}

// Suggest emails a suggestion posted from the home page. Failures keep the
// text in the form.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	req := feedback.Request{
		Suggestion: r.PostForm.Get("suggestion"),
		UserEmail:  r.PostForm.Get("userEmail"),
	}
	n := s.notifier(r)
	page := homePage{
		Technician: s.prefs.Technician(w, r),
		Suggestion: suggestionForm{Enabled: true, Suggestion: req.Suggestion, Email: req.UserEmail},
	}

	if strings.TrimSpace(req.Suggestion) == "" {
		notify.Error(n, "Error", "Please enter a suggestion")
		s.render(w, r, http.StatusBadRequest, "home", "Home", page)
		return
	}

	if _, err := s.feedback.Send(r.Context(), req); err != nil {
		log.WithError(err).Error("Failed to send suggestion")
		msg := err.Error()
		if msg == "" {
			msg = "Failed to send suggestion"
		}
		notify.Error(n, "Error", msg)
		s.render(w, r, http.StatusInternalServerError, "home", "Home", page)
		return
	}

	notify.Success(n, "Success!", "Your suggestion has been sent. Thank you for your feedback!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
