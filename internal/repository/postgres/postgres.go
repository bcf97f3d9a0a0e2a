package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medibook-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}
