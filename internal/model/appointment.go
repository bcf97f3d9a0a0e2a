package model

import (
	"time"

	"github.com/google/uuid"
)

// Doctors lists the clinicians a patient can book with.
var Doctors = []string{
	"Dr. Maynard Tolu",
	"Dr. Ambrose Ibe",
	"Dr. Nuhu Gidado",
	"Dr. Enya Ideba",
	"Dr. Chijioke Asogwa",
}

func IsDoctor(name string) bool {
	for _, d := range Doctors {
		if d == name {
			return true
		}
	}
	return false
}

// ConfirmRequest optionally pins the version the admin was looking at.
type ConfirmRequest struct {
	Version *int64 `json:"version"`
}

type AdjustRequest struct {
	Doctor          *string    `json:"doctor" validate:"omitempty,doctor"`
	AppointmentDate *time.Time `json:"appointment_date"`
	Version         *int64     `json:"version"`
}

type CancelRequest struct {
	ID      uuid.UUID
	Version *int64
}

// AppointmentNotification is the payload of the confirmation email, on the wire and in the outbox.
type AppointmentNotification struct {
	Email   string    `json:"email" validate:"required,email"`
	Patient string    `json:"patient" validate:"required"`
	Doctor  string    `json:"doctor" validate:"required"`
	Date    time.Time `json:"date" validate:"required"`
}

// AppointmentEvent is published for every lifecycle change.
type AppointmentEvent struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	Action          Action     `json:"action"`
	Status          Status     `json:"status"`
	Doctor          *string    `json:"doctor,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
	Version         int64      `json:"version"`
	OccurredAt      time.Time  `json:"occurred_at"`
}
