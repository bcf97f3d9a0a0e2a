package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository"
)

const patientColumns = `
	id, version, username, phone, email, address, dob, gender,
	doctor, reason, comment, appointment_date, booked_on, status,
	created_at, updated_at`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, version, username, phone, email, address, dob, gender,
			doctor, reason, comment, appointment_date, booked_on, status,
			created_at, updated_at
		) VALUES (
			:id, :version, :username, :phone, :email, :address, :dob, :gender,
			:doctor, :reason, :comment, :appointment_date, :booked_on, :status,
			:created_at, :updated_at
		)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now().UTC()
	patient.Version = 1
	patient.CreatedAt = now
	patient.UpdatedAt = now

	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + `
		FROM patients
		WHERE phone = $1
		ORDER BY created_at ASC
		LIMIT 1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient by phone: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient, events ...*model.OutboxEvent) error {
	query := `
		UPDATE patients SET
			username = :username,
			email = :email,
			address = :address,
			dob = :dob,
			gender = :gender,
			doctor = :doctor,
			reason = :reason,
			comment = :comment,
			appointment_date = :appointment_date,
			booked_on = :booked_on,
			status = :status,
			version = version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version
	`
	patient.UpdatedAt = time.Now().UTC()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, patient)
		if err != nil {
			return fmt.Errorf("failed to update patient: %w", err)
		}
		if err := checkVersioned(ctx, tx, result, patient.ID); err != nil {
			return err
		}
		return insertOutboxEvents(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	patient.Version++
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, patient *model.Patient, events ...*model.OutboxEvent) error {
	query := `DELETE FROM patients WHERE id = $1 AND version = $2`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, patient.ID, patient.Version)
		if err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		if err := checkVersioned(ctx, tx, result, patient.ID); err != nil {
			return err
		}
		return insertOutboxEvents(ctx, tx, events)
	})
}

// checkVersioned tells a missing row apart from a stale version when a conditional write hit nothing.
func checkVersioned(ctx context.Context, tx *sqlx.Tx, result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check patient: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleVersion
}

func (r *patientRepository) ListAppointments(ctx context.Context) ([]*model.AppointmentSummary, error) {
	query := `
		SELECT id, username, doctor, appointment_date, booked_on, status, version
		FROM patients
		WHERE appointment_date IS NOT NULL
		ORDER BY booked_on ASC NULLS LAST, created_at ASC
	`
	appointments := []*model.AppointmentSummary{}
	if err := r.db.SelectContext(ctx, &appointments, query); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *patientRepository) CountByStatus(ctx context.Context) (*model.StatusCounts, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM patients
		WHERE appointment_date IS NOT NULL
		GROUP BY status
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}
	defer rows.Close()

	counts := &model.StatusCounts{}
	for rows.Next() {
		var (
			status model.Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan appointment count: %w", err)
		}
		switch status {
		case model.StatusPending:
			counts.Pending = count
		case model.StatusConfirmed:
			counts.Confirmed = count
		case model.StatusAdjusted:
			counts.Adjusted = count
		}
		counts.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}
	return counts, nil
}
