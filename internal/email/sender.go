package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/jwalitptl/medibook-api/internal/config"
	"github.com/jwalitptl/medibook-api/pkg/circuitbreaker"
	"github.com/jwalitptl/medibook-api/pkg/logger"
)

// Sender delivers one email. Implementations can be swapped (SMTP, SendGrid, SES)
// without changing callers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// Message represents an email to be sent.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("email: recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("email: subject is required")
	}
	return nil
}

// From identifies the sender on every provider.
type From struct {
	Email string
	Name  string
}

func (f From) String() string {
	if f.Name == "" {
		return f.Email
	}
	return fmt.Sprintf("%s <%s>", f.Name, f.Email)
}

// NewSender builds the sender named by cfg.Provider, wrapped in a circuit breaker.
func NewSender(ctx context.Context, cfg config.EmailConfig, secrets config.Secrets, log *logger.Logger) (Sender, error) {
	from := From{Email: secrets.FromEmail, Name: cfg.FromName}

	var (
		sender Sender
		err    error
	)
	switch cfg.Provider {
	case "", "log":
		return NewStubSender(log), nil
	case "smtp":
		sender = NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: secrets.SMTPPassword,
		}, from, log)
	case "sendgrid":
		sender, err = NewSendGridSender(secrets.NotifyAPIKey, from, log)
	case "ses":
		awsCfg, loadErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if loadErr != nil {
			return nil, fmt.Errorf("email: load aws config: %w", loadErr)
		}
		sender = NewSESSender(sesv2.NewFromConfig(awsCfg), from, log)
	default:
		return nil, fmt.Errorf("email: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewBreakerSender(sender, circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "email-" + sender.Provider(),
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}), cfg.Timeout), nil
}

// BreakerSender stops calling a failing provider until its breaker half-opens.
type BreakerSender struct {
	next    Sender
	cb      *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

func NewBreakerSender(next Sender, cb *circuitbreaker.CircuitBreaker, timeout time.Duration) *BreakerSender {
	return &BreakerSender{next: next, cb: cb, timeout: timeout}
}

func (b *BreakerSender) Provider() string { return b.next.Provider() }

func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.cb.Execute(func() error {
		return b.next.Send(ctx, msg)
	})
}

// StubSender logs but doesn't send. Used in development and tests.
type StubSender struct {
	log *logger.Logger
}

func NewStubSender(log *logger.Logger) *StubSender {
	if log == nil {
		log = logger.Nop()
	}
	return &StubSender{log: log}
}

func (s *StubSender) Provider() string { return "log" }

func (s *StubSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}
