package feedback

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// Message is one outgoing email with an HTML and a plain text body.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends a message and returns the provider's message ID, if any.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendEndpoint is the Resend email API.
const ResendEndpoint = "https://api.resend.com/emails"

// ResendMailer sends email through the Resend HTTP API.
type ResendMailer struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

// NewResendMailer returns a mailer for the given API key.
func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{
		APIKey:   apiKey,
		Endpoint: ResendEndpoint,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("resend API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode resend response: %w", err)
	}
	return out.ID, nil
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	TLSEnabled bool
}

// SMTPMailer sends email through an SMTP server.
type SMTPMailer struct {
	Config SMTPConfig
}

// Send delivers msg as multipart/alternative. SMTP returns no message ID.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := buildMIME(msg)
	if err != nil {
		return "", err
	}

	cfg := m.Config
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	serverAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	from := envelopeAddress(msg.From)

	if !cfg.TLSEnabled {
		if err := smtp.SendMail(serverAddr, auth, from, msg.To, body); err != nil {
			return "", fmt.Errorf("send mail: %w", err)
		}
		return "", nil
	}

	conn, err := tls.Dial("tcp", serverAddr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return "", fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return "", fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(from); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range msg.To {
		if err = client.Rcpt(recipient); err != nil {
			return "", fmt.Errorf("failed to add recipient %s: %w", recipient, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("failed to open data connection: %w", err)
	}
	if _, err = w.Write(body); err != nil {
		return "", fmt.Errorf("failed to write email body: %w", err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("failed to close data connection: %w", err)
	}
	return "", client.Quit()
}

// buildMIME renders msg with headers and both bodies.
func buildMIME(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, part.body); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// envelopeAddress strips a display name: "Name <a@b>" becomes "a@b".
func envelopeAddress(addr string) string {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return parsed.Address
}
