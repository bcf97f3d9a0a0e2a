package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/pkg/auth"
	"github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/security"
)

const (
	InvalidPasscodeMessage = "Invalid passcode. Please try again."

	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
	bcryptCost       = 12
)

var ErrLockedOut = stderrors.New("too many failed attempts")

// Service exchanges the admin passcode for a session token. The passcode is
// hashed once at startup and only the hash is kept in memory.
type Service struct {
	hasher   security.PasscodeHasher
	hash     string
	jwtSvc   auth.JWTService
	attempts *gocache.Cache
	log      *logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithHasher replaces the default bcrypt cost, mainly so tests stay fast.
func WithHasher(h security.PasscodeHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func NewService(passkey string, jwtSvc auth.JWTService, opts ...Option) (*Service, error) {
	s := &Service{
		hasher:   security.NewBcryptHasher(bcryptCost),
		jwtSvc:   jwtSvc,
		attempts: gocache.New(lockoutDuration, lockoutDuration),
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	hash, err := s.hasher.Hash(passkey)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin passkey: %w", err)
	}
	s.hash = hash
	return s, nil
}

// CreateSession checks the passcode and issues a token. client identifies the
// caller for lockout purposes (usually the remote IP).
func (s *Service) CreateSession(ctx context.Context, client string, req *model.AdminSessionRequest) (*model.TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n, ok := s.attempts.Get(client); ok && n.(int) >= maxLoginAttempts {
		return nil, errors.Unauthorized("Too many failed attempts. Please try again later.", ErrLockedOut)
	}

	if strings.TrimSpace(req.Passcode) == "" {
		return nil, errors.Validation(errors.FieldError{Field: "passcode", Message: "passcode is required"})
	}

	if err := s.hasher.Compare(s.hash, req.Passcode); err != nil {
		s.recordFailure(client)
		s.log.Warn("Admin passcode rejected", "client", client)
		return nil, errors.Unauthorized(InvalidPasscodeMessage, err)
	}
	s.attempts.Delete(client)

	token, expiresAt, err := s.jwtSvc.GenerateAdminToken(s.now())
	if err != nil {
		return nil, errors.Internal(err)
	}

	s.log.Info("Admin session issued", "client", client)
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) recordFailure(client string) {
	if err := s.attempts.Add(client, 1, gocache.DefaultExpiration); err != nil {
		_, _ = s.attempts.IncrementInt(client, 1)
	}
}
