package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all persisted rows
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
