package patient

import (
	"context"
	stderrors "errors"
	"strings"
	"time"
	"unicode"

	"github.com/jwalitptl/medibook-api/internal/cache"
	"github.com/jwalitptl/medibook-api/internal/lock"
	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository"
	"github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
	"github.com/jwalitptl/medibook-api/pkg/validator"
)

// EarliestDOB is the lower bound for a date of birth.
var EarliestDOB = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

type Service struct {
	repo      repository.PatientRepository
	locker    lock.Locker
	validator validator.Validator
	cache     *cache.AppointmentCache
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache invalidates the admin listing whenever a patient row changes.
func WithCache(c *cache.AppointmentCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService wires the patient flow. A nil locker runs intake without cross-instance serialization.
func NewService(repo repository.PatientRepository, locker lock.Locker, v validator.Validator, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		locker:    locker,
		validator: v,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Intake upserts the record for req.Phone and routes on profile completeness.
func (s *Service) Intake(ctx context.Context, req *model.IntakeRequest) (*model.FlowResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var result *model.FlowResult
	run := func(ctx context.Context) error {
		var err error
		result, err = s.intake(ctx, req)
		return err
	}

	if s.locker == nil {
		if err := run(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := s.locker.WithLock(ctx, req.Phone, run); err != nil {
		if stderrors.Is(err, lock.ErrLockNotAcquired) {
			return nil, errors.Conflict("intake in progress for this phone number", err)
		}
		if errors.As(err) != nil {
			return nil, err
		}
		return nil, errors.Internal(err)
	}
	return result, nil
}

func (s *Service) intake(ctx context.Context, req *model.IntakeRequest) (*model.FlowResult, error) {
	existing, err := s.repo.GetByPhone(ctx, req.Phone)
	switch {
	case err == nil:
		existing.Username = req.Username
		existing.Email = req.Email
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, storeError("patient", err)
		}
		// the listing shows username and version
		s.invalidate(ctx)
		route := model.RouteRegistration
		if existing.ProfileComplete() {
			route = model.RouteBooking
		}
		s.log.Info("Returning patient identified", "patient_id", existing.ID.String(), "route", string(route))
		return &model.FlowResult{Route: route, Phone: existing.Phone, Patient: existing}, nil

	case stderrors.Is(err, repository.ErrNotFound):
		patient := &model.Patient{
			Username: req.Username,
			Phone:    req.Phone,
			Email:    req.Email,
		}
		if err := s.repo.Create(ctx, patient); err != nil {
			return nil, errors.Internal(err)
		}
		s.log.Info("New patient created", "patient_id", patient.ID.String())
		return &model.FlowResult{Route: model.RouteRegistration, Phone: patient.Phone, Patient: patient}, nil

	default:
		return nil, errors.Internal(err)
	}
}

// Profile returns the greeting data for the registration page.
func (s *Service) Profile(ctx context.Context, phone string) (*model.ProfileSummary, error) {
	patient, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return &model.ProfileSummary{
		Username:        patient.Username,
		Phone:           patient.Phone,
		ProfileComplete: patient.ProfileComplete(),
	}, nil
}

// Register stores address, date of birth and gender on the record for phone.
func (s *Service) Register(ctx context.Context, phone string, req *model.RegistrationRequest) (*model.FlowResult, error) {
	req.Address = strings.TrimSpace(req.Address)
	if err := s.validateRegistration(req); err != nil {
		return nil, err
	}

	patient, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	address := req.Address
	dob := req.DOB.Time
	gender := req.Gender
	patient.Address = &address
	patient.DOB = &dob
	patient.Gender = &gender

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, storeError("patient", err)
	}
	s.invalidate(ctx)
	return &model.FlowResult{Route: model.RouteBooking, Phone: patient.Phone, Patient: patient}, nil
}

func (s *Service) validateRegistration(req *model.RegistrationRequest) error {
	var fields []errors.FieldError
	if err := s.validator.Validate(req); err != nil {
		appErr := errors.As(err)
		if appErr == nil || appErr.Code != errors.ErrValidation {
			return err
		}
		fields = append(fields, appErr.Fields...)
	}

	today := s.now().UTC()
	switch {
	case req.DOB.IsZero():
		fields = append(fields, errors.FieldError{Field: "dob", Message: "dob is required"})
	case req.DOB.Before(EarliestDOB) || req.DOB.After(today):
		fields = append(fields, errors.FieldError{Field: "dob", Message: "Invalid date of birth"})
	}

	if len(fields) > 0 {
		return errors.Validation(fields...)
	}
	return nil
}

// Book schedules an appointment on the record for phone and marks it pending.
func (s *Service) Book(ctx context.Context, phone string, req *model.BookingRequest) (result *model.FlowResult, err error) {
	defer func() { s.metrics.ObserveTransition(string(model.ActionBook), err) }()

	req.Reason = strings.TrimSpace(req.Reason)
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validateBooking(req); err != nil {
		return nil, err
	}

	patient, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	next, _, err := model.Transition(patient.Status, model.ActionBook)
	if err != nil {
		return nil, errors.Conflict(err.Error(), err)
	}

	now := s.now().UTC()
	doctor := req.Doctor
	reason := req.Reason
	comment := req.Comment
	date := req.AppointmentDate.UTC()
	patient.Doctor = &doctor
	patient.Reason = &reason
	patient.Comment = &comment
	patient.AppointmentDate = &date
	patient.BookedOn = &now
	patient.Status = next

	event, err := model.NewAppointmentOutboxEvent(patient, model.ActionBook, now)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if err := s.repo.Update(ctx, patient, event); err != nil {
		return nil, storeError("patient", err)
	}
	s.invalidate(ctx)

	s.log.Info("Appointment booked", "patient_id", patient.ID.String(), "doctor", doctor)
	return &model.FlowResult{Route: model.RouteSuccess, Phone: patient.Phone, Patient: patient}, nil
}

func (s *Service) validateBooking(req *model.BookingRequest) error {
	var fields []errors.FieldError
	if err := s.validator.Validate(req); err != nil {
		appErr := errors.As(err)
		if appErr == nil || appErr.Code != errors.ErrValidation {
			return err
		}
		fields = append(fields, appErr.Fields...)
	}
	if !req.AppointmentDate.IsZero() && !req.AppointmentDate.After(s.now()) {
		fields = append(fields, errors.FieldError{
			Field:   "appointment_date",
			Message: "Appointment date must be in the future",
		})
	}
	if len(fields) > 0 {
		return errors.Validation(fields...)
	}
	return nil
}

// Appointment returns what the success page shows.
func (s *Service) Appointment(ctx context.Context, phone string) (*model.AppointmentDetails, error) {
	patient, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if patient.AppointmentDate == nil {
		return nil, errors.NotFound("appointment", nil)
	}
	return &model.AppointmentDetails{
		Doctor:          patient.Doctor,
		AppointmentDate: patient.AppointmentDate,
		Status:          patient.Status,
	}, nil
}

func (s *Service) findByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	if !validator.IsPhone(phone) {
		return nil, errors.Validation(errors.FieldError{Field: "phone", Message: "Invalid phone number"})
	}
	patient, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, storeError("patient", err)
	}
	return patient, nil
}

// PhonePathParam restores a phone number from a route parameter that gin has
// already percent-decoded. A '+' sent unencoded arrives as a space.
func PhonePathParam(param string) string {
	param = strings.TrimRightFunc(param, unicode.IsSpace)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '+'
		}
		return r
	}, param)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Error(err, "Failed to invalidate appointment listing")
	}
}

func storeError(resource string, err error) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(resource, err)
	case stderrors.Is(err, repository.ErrStaleVersion):
		return errors.Conflict("record was modified, reload and try again", err)
	default:
		return errors.Internal(err)
	}
}
