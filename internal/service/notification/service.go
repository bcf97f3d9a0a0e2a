package notification

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/jwalitptl/medibook-api/internal/email"
	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
)

const (
	Subject = "Appointment Confirmation!"

	// DateLayout renders e.g. "Mar 05, 2026 | 10:00 AM".
	DateLayout = "Jan 02, 2006 | 03:04 PM"
)

const textBody = `Hi {{.Patient}},

Welcome to MediBook Clinic, this is to notify you that your appointment request with {{.Doctor}} has been scheduled for {{.Date}}. Please do a calendar reminder for the set date so you do not come late or miss your appointment.

Thank you.
Team Medibook

Medibook clinic is an online appointment scheduler for demo purposes. Contact us if you like.
`

const htmlBody = `<!DOCTYPE html>
<html>
<body style="background-color:#ffffff;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif">
<div style="margin:0 auto;padding:20px 0 48px">
<h1 style="color:#0ea5e9;text-align:center">MediBook Clinic</h1>
<p style="font-size:16px;line-height:26px">Hi {{.Patient}},</p>
<p style="font-size:16px;line-height:26px">Welcome to MediBook Clinic, this is to notify you that your appointment request with {{.Doctor}} has been scheduled for {{.Date}}. Please do a calendar reminder for the set date so you do not come late or miss your appointment.</p>
<p style="font-size:16px;line-height:26px">Thank you.<br/>Team Medibook</p>
<hr style="border-color:#cccccc;margin:20px 0"/>
<p style="color:#8898aa;font-size:12px">Medibook clinic is an online appointment scheduler for demo purposes. Contact us if you like.</p>
</div>
</body>
</html>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

// Service formats and delivers appointment notifications.
type Service interface {
	Send(ctx context.Context, n *model.AppointmentNotification) error
	Render(n *model.AppointmentNotification) (email.Message, error)
}

type Option func(*service)

// WithLocation renders appointment dates in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) { s.metrics = m }
}

type service struct {
	sender  email.Sender
	log     *logger.Logger
	metrics *metrics.Metrics
	loc     *time.Location
}

func NewService(sender email.Sender, log *logger.Logger, opts ...Option) Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &service{sender: sender, log: log, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type templateData struct {
	Patient string
	Doctor  string
	Date    string
}

func (s *service) Render(n *model.AppointmentNotification) (email.Message, error) {
	data := templateData{
		Patient: n.Patient,
		Doctor:  n.Doctor,
		Date:    n.Date.In(s.loc).Format(DateLayout),
	}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return email.Message{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return email.Message{}, fmt.Errorf("failed to render html body: %w", err)
	}

	return email.Message{
		To:      n.Email,
		ToName:  n.Patient,
		Subject: Subject,
		Body:    text.String(),
		HTML:    html.String(),
	}, nil
}

func (s *service) Send(ctx context.Context, n *model.AppointmentNotification) error {
	msg, err := s.Render(n)
	if err != nil {
		return err
	}

	err = s.sender.Send(ctx, msg)
	s.metrics.ObserveNotification(s.sender.Provider(), err)
	if err != nil {
		s.log.Error(err, "Failed to send appointment notification", "to", n.Email, "doctor", n.Doctor)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
