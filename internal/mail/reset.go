package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const platformName = "Suanfamama"

// Deliverer sends a rendered message.
type Deliverer interface {
	Send(ctx context.Context, msg Message) error
}

// ResetMailer renders and sends password reset mail.
type ResetMailer struct {
	sender   Deliverer
	tmpl     *template.Template
	validFor time.Duration
}

type resetData struct {
	Platform string
	Link     string
	ValidFor time.Duration
}

// NewResetMailer parses the reset template.
func NewResetMailer(sender Deliverer, validFor time.Duration) (*ResetMailer, error) {
	tmpl, err := template.New("password_reset.tmpl").
		Funcs(template.FuncMap{"formatDuration": formatDuration}).
		ParseFS(templatesFS, "templates/password_reset.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse reset template: %w", err)
	}

	return &ResetMailer{sender: sender, tmpl: tmpl, validFor: validFor}, nil
}

// SendPasswordReset mails link to the given address.
func (m *ResetMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	var buf bytes.Buffer
	err := m.tmpl.Execute(&buf, resetData{
		Platform: platformName,
		Link:     link,
		ValidFor: m.validFor,
	})
	if err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}

	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: "Reset your " + platformName + " password",
		Body:    strings.TrimSpace(buf.String()),
	})
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
