package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medibook-api/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrStaleVersion = errors.New("record was modified by another request")
)

// All repository interfaces in one file
type (
	// PatientRepository persists the patients table. Writes that carry outbox
	// events insert them in the same transaction as the row change.
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		// GetByPhone returns the earliest created row for phone.
		GetByPhone(ctx context.Context, phone string) (*model.Patient, error)
		// Update writes every mutable column if patient.Version still matches,
		// then bumps patient.Version.
		Update(ctx context.Context, patient *model.Patient, events ...*model.OutboxEvent) error
		Delete(ctx context.Context, patient *model.Patient, events ...*model.OutboxEvent) error
		ListAppointments(ctx context.Context) ([]*model.AppointmentSummary, error)
		CountByStatus(ctx context.Context) (*model.StatusCounts, error)
		Ping(ctx context.Context) error
	}

	OutboxRepository interface {
		// ClaimPendingEvents leases up to limit due events so concurrent workers skip them.
		ClaimPendingEvents(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
