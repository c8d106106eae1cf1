package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	htmltemplate "html/template"
	"net/http"
	"strings"
	texttemplate "text/template"
	"time"

	log "github.com/sirupsen/logrus"
)

// Subject is the subject line of every suggestion email.
const Subject = "New Suggestion from Worx Notes"

var (
	ErrEmptySuggestion = errors.New("suggestion text is required")
	ErrNotConfigured   = errors.New("email delivery is not configured")
)

// Request is the body of a suggestion submission.
type Request struct {
	Suggestion string `json:"suggestion"`
	UserEmail  string `json:"userEmail,omitempty"`
}

// Response is returned for every submission.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	ID      string `json:"id,omitempty"`
}

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>New Suggestion from Worx Notes</h2>
<p><strong>Suggestion:</strong></p>
<p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
{{if .UserEmail}}<p><strong>User Email:</strong> {{.UserEmail}}</p>{{else}}<p><em>No contact email provided</em></p>{{end}}
<hr>
<p><small>Sent from Worx Notes application at {{.SentAt}}</small></p>
`))

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`New Suggestion from Worx Notes

Suggestion:
{{.Suggestion}}

{{if .UserEmail}}User Email: {{.UserEmail}}{{else}}No contact email provided{{end}}

---
Sent from Worx Notes application at {{.SentAt}}
`))

type emailData struct {
	Suggestion string
	Lines      []string
	UserEmail  string
	SentAt     string
}

// Service turns suggestions into emails.
type Service struct {
	mailer Mailer
	from   string
	to     []string
	now    func() time.Time
}

// NewService returns a feedback service. A nil mailer makes every send fail
// with ErrNotConfigured.
func NewService(mailer Mailer, from string, to ...string) *Service {
	return &Service{mailer: mailer, from: from, to: to, now: time.Now}
}

// Compose builds the email for a suggestion.
func (s *Service) Compose(req Request) (Message, error) {
	suggestion := strings.TrimSpace(req.Suggestion)
	if suggestion == "" {
		return Message{}, ErrEmptySuggestion
	}
	data := emailData{
		Suggestion: suggestion,
		Lines:      strings.Split(suggestion, "\n"),
		UserEmail:  strings.TrimSpace(req.UserEmail),
		SentAt:     s.now().Format("Jan 2, 2006 3:04:05 PM"),
	}

	var html, text bytes.Buffer
	if err := htmlBody.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := textBody.Execute(&text, data); err != nil {
		return Message{}, err
	}
	return Message{
		From:    s.from,
		To:      s.to,
		Subject: Subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// Send composes and delivers a suggestion.
func (s *Service) Send(ctx context.Context, req Request) (string, error) {
	if s.mailer == nil {
		return "", ErrNotConfigured
	}
	msg, err := s.Compose(req)
	if err != nil {
		return "", err
	}
	return s.mailer.Send(ctx, msg)
}

// Handler serves POST /api/feedback.
type Handler struct {
	service *Service
}

// NewHandler creates a new feedback handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeResponse(w, http.StatusMethodNotAllowed, Response{Error: "Method not allowed"})
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeResponse(w, http.StatusBadRequest, Response{Error: "Invalid request body"})
		return
	}

	id, err := h.service.Send(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEmptySuggestion) {
			status = http.StatusBadRequest
		}
		log.WithError(err).Error("Failed to send suggestion")
		writeResponse(w, status, Response{Error: err.Error()})
		return
	}

	writeResponse(w, http.StatusOK, Response{
		Success: true,
		Message: "Suggestion sent successfully",
		ID:      id,
	})
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
