package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jwalitptl/medibook-api/pkg/logger"
)

// sendGridClient is satisfied by *sendgrid.Client.
type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridSender struct {
	client sendGridClient
	from   From
	log    *logger.Logger
}

func NewSendGridSender(apiKey string, from From, log *logger.Logger) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, errors.New("email: sendgrid api key is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		log:    log,
	}, nil
}

func (s *SendGridSender) Provider() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	from := mail.NewEmail(s.from.Name, s.from.Email)
	to := mail.NewEmail(msg.ToName, msg.To)

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.log.Error(err, "sendgrid send failed", "to", msg.To)
		return fmt.Errorf("email: sendgrid send failed: %w", err)
	}

	if response.StatusCode >= 400 {
		s.log.Warn("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("email: sendgrid returned status %d", response.StatusCode)
	}

	s.log.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}
