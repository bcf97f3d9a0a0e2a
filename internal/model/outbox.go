package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Outbox event types
const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentAdjusted  = "appointment.adjusted"
	EventAppointmentCancelled = "appointment.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	AggregateID  uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// EventEnvelope is what an outbox payload holds: the lifecycle event, plus the email to send when there is one.
type EventEnvelope struct {
	Event        AppointmentEvent         `json:"event"`
	Notification *AppointmentNotification `json:"notification,omitempty"`
}

func NewOutboxEvent(eventType string, aggregateID uuid.UUID, envelope EventEnvelope) (*OutboxEvent, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxStatusPending,
	}, nil
}

func (e *OutboxEvent) Envelope() (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(e.Payload, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox payload: %w", err)
	}
	return &env, nil
}

// EventTypeFor maps a lifecycle action to its outbox event type.
func EventTypeFor(action Action) string {
	switch action {
	case ActionBook:
		return EventAppointmentBooked
	case ActionConfirm:
		return EventAppointmentConfirmed
	case ActionAdjust:
		return EventAppointmentAdjusted
	case ActionCancel:
		return EventAppointmentCancelled
	}
	return "appointment." + string(action)
}

// NewAppointmentOutboxEvent captures p after action was applied. Version is the
// version the action was applied to. Confirm and adjust carry the email to send.
func NewAppointmentOutboxEvent(p *Patient, action Action, occurredAt time.Time) (*OutboxEvent, error) {
	env := EventEnvelope{
		Event: AppointmentEvent{
			PatientID:       p.ID,
			Action:          action,
			Status:          p.Status,
			Doctor:          p.Doctor,
			AppointmentDate: p.AppointmentDate,
			Version:         p.Version,
			OccurredAt:      occurredAt,
		},
	}
	if action == ActionConfirm || action == ActionAdjust {
		n, err := NotificationFor(p)
		if err != nil {
			return nil, err
		}
		env.Notification = n
	}
	return NewOutboxEvent(EventTypeFor(action), p.ID, env)
}

// NotificationFor builds the email payload from the record's current values.
func NotificationFor(p *Patient) (*AppointmentNotification, error) {
	if p.Doctor == nil || p.AppointmentDate == nil {
		return nil, fmt.Errorf("patient %s has no scheduled appointment", p.ID)
	}
	return &AppointmentNotification{
		Email:   p.Email,
		Patient: p.Username,
		Doctor:  *p.Doctor,
		Date:    *p.AppointmentDate,
	}, nil
}
