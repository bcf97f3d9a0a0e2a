package admin

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medibook-api/internal/cache"
	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository"
	"github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
	"github.com/jwalitptl/medibook-api/pkg/validator"
)

// Service drives the admin review flow. Status changes and their notifications
// are committed together through the outbox, so delivery never blocks or fails an action.
type Service struct {
	repo      repository.PatientRepository
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

func WithCache(c *cache.AppointmentCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(repo repository.PatientRepository, v validator.Validator, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		validator: v,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAppointments returns every booked record, oldest booking first.
func (s *Service) ListAppointments(ctx context.Context) ([]*model.AppointmentSummary, error) {
	gen, cacheable := s.cache.Generation(ctx)
	if cacheable {
		if list, ok := s.cache.Appointments(gen); ok {
			return list, nil
		}
	}
	list, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if cacheable {
		s.cache.SetAppointments(gen, list)
	}
	return list, nil
}

func (s *Service) Summary(ctx context.Context) (*model.StatusCounts, error) {
	gen, cacheable := s.cache.Generation(ctx)
	if cacheable {
		if counts, ok := s.cache.Summary(gen); ok {
			return counts, nil
		}
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if cacheable {
		s.cache.SetSummary(gen, counts)
	}
	return counts, nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID, req *model.ConfirmRequest) (patient *model.Patient, err error) {
	defer func() { s.metrics.ObserveTransition(string(model.ActionConfirm), err) }()

	patient, err = s.load(ctx, id, req.Version)
	if err != nil {
		return nil, err
	}

	next, _, err := model.Transition(patient.Status, model.ActionConfirm)
	if err != nil {
		return nil, errors.Conflict(err.Error(), err)
	}
	patient.Status = next

	if err := s.commit(ctx, patient, model.ActionConfirm); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Adjust(ctx context.Context, id uuid.UUID, req *model.AdjustRequest) (patient *model.Patient, err error) {
	defer func() { s.metrics.ObserveTransition(string(model.ActionAdjust), err) }()

	if err := s.validateAdjust(req); err != nil {
		return nil, err
	}

	patient, err = s.load(ctx, id, req.Version)
	if err != nil {
		return nil, err
	}

	next, _, err := model.Transition(patient.Status, model.ActionAdjust)
	if err != nil {
		return nil, errors.Conflict(err.Error(), err)
	}

	if req.Doctor != nil {
		doctor := *req.Doctor
		patient.Doctor = &doctor
	}
	if req.AppointmentDate != nil {
		date := req.AppointmentDate.UTC()
		patient.AppointmentDate = &date
	}
	patient.Status = next

	if err := s.commit(ctx, patient, model.ActionAdjust); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) validateAdjust(req *model.AdjustRequest) error {
	var fields []errors.FieldError
	if err := s.validator.Validate(req); err != nil {
		appErr := errors.As(err)
		if appErr == nil || appErr.Code != errors.ErrValidation {
			return err
		}
		fields = append(fields, appErr.Fields...)
	}
	if req.Doctor == nil && req.AppointmentDate == nil {
		fields = append(fields, errors.FieldError{
			Field:   "appointment_date",
			Message: "Provide a new doctor or appointment date",
		})
	}
	if req.AppointmentDate != nil && !req.AppointmentDate.After(s.now()) {
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

// Cancel deletes exactly the record named by req.ID.
func (s *Service) Cancel(ctx context.Context, req *model.CancelRequest) (err error) {
	defer func() { s.metrics.ObserveTransition(string(model.ActionCancel), err) }()

	patient, err := s.load(ctx, req.ID, req.Version)
	if err != nil {
		return err
	}

	if _, _, err := model.Transition(patient.Status, model.ActionCancel); err != nil {
		return errors.Conflict(err.Error(), err)
	}

	event, err := model.NewAppointmentOutboxEvent(patient, model.ActionCancel, s.now().UTC())
	if err != nil {
		return errors.Internal(err)
	}
	if err := s.repo.Delete(ctx, patient, event); err != nil {
		return storeError(err)
	}
	s.invalidate(ctx)

	s.log.Info("Appointment cancelled", "patient_id", patient.ID.String())
	return nil
}

// load fetches id and rejects it when the caller pinned an older version.
func (s *Service) load(ctx context.Context, id uuid.UUID, expected *int64) (*model.Patient, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if expected != nil && *expected != patient.Version {
		return nil, errors.Conflict("appointment was modified, reload and try again", repository.ErrStaleVersion)
	}
	return patient, nil
}

func (s *Service) commit(ctx context.Context, patient *model.Patient, action model.Action) error {
	event, err := model.NewAppointmentOutboxEvent(patient, action, s.now().UTC())
	if err != nil {
		return errors.Conflict("appointment has nothing scheduled", err)
	}
	if err := s.repo.Update(ctx, patient, event); err != nil {
		return storeError(err)
	}
	s.invalidate(ctx)

	s.log.Info("Appointment updated",
		"patient_id", patient.ID.String(),
		"action", string(action),
		"status", patient.Status.String())
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Error(err, "Failed to invalidate appointment listing")
	}
}

func storeError(err error) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound("appointment", err)
	case stderrors.Is(err, repository.ErrStaleVersion):
		return errors.Conflict("appointment was modified, reload and try again", err)
	default:
		return errors.Internal(err)
	}
}
