package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		action  Action
		want    Status
		deleted bool
		wantErr bool
	}{
		{"book from none", StatusNone, ActionBook, StatusPending, false, false},
		{"rebook confirmed", StatusConfirmed, ActionBook, StatusPending, false, false},
		{"confirm pending", StatusPending, ActionConfirm, StatusConfirmed, false, false},
		{"confirm confirmed", StatusConfirmed, ActionConfirm, StatusConfirmed, false, true},
		{"confirm none", StatusNone, ActionConfirm, StatusNone, false, true},
		{"adjust pending", StatusPending, ActionAdjust, StatusAdjusted, false, false},
		{"adjust confirmed", StatusConfirmed, ActionAdjust, StatusAdjusted, false, false},
		{"adjust none", StatusNone, ActionAdjust, StatusNone, false, true},
		{"cancel adjusted", StatusAdjusted, ActionCancel, StatusNone, true, false},
		{"cancel none", StatusNone, ActionCancel, StatusNone, false, true},
		{"unknown status", Status("archived"), ActionBook, Status("archived"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, deleted, err := Transition(tt.from, tt.action)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.deleted, deleted)
		})
	}
}

func TestStatusScan(t *testing.T) {
	var s Status
	require.NoError(t, s.Scan(nil))
	assert.Equal(t, StatusNone, s)

	require.NoError(t, s.Scan([]byte("confirmed")))
	assert.Equal(t, StatusConfirmed, s)

	assert.Error(t, s.Scan("archived"))
	assert.Error(t, s.Scan(42))

	v, err := StatusNone.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, "none", StatusNone.String())
}

func TestNewAppointmentOutboxEvent(t *testing.T) {
	doctor := "Dr. Nuhu Gidado"
	date := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &Patient{
		Base:            Base{ID: uuid.New(), Version: 3},
		Username:        "Jane",
		Email:           "jane@example.com",
		Doctor:          &doctor,
		AppointmentDate: &date,
		Status:          StatusConfirmed,
	}

	event, err := NewAppointmentOutboxEvent(p, ActionConfirm, date.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, EventAppointmentConfirmed, event.EventType)
	assert.Equal(t, p.ID, event.AggregateID)
	assert.Equal(t, OutboxStatusPending, event.Status)

	env, err := event.Envelope()
	require.NoError(t, err)
	require.NotNil(t, env.Notification)
	assert.Equal(t, "jane@example.com", env.Notification.Email)
	assert.Equal(t, "Jane", env.Notification.Patient)
	assert.Equal(t, doctor, env.Notification.Doctor)
	assert.True(t, date.Equal(env.Notification.Date))
	assert.Equal(t, int64(3), env.Event.Version)

	booked, err := NewAppointmentOutboxEvent(p, ActionBook, date)
	require.NoError(t, err)
	env, err = booked.Envelope()
	require.NoError(t, err)
	assert.Nil(t, env.Notification)

	p.Doctor = nil
	_, err = NewAppointmentOutboxEvent(p, ActionAdjust, date)
	assert.Error(t, err)
}

func TestDateUnmarshalJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"1990-01-01"`)))
	assert.Equal(t, NewDate(1990, time.January, 1), d)

	require.NoError(t, d.UnmarshalJSON([]byte(`"1990-01-01T15:04:05Z"`)))
	assert.Equal(t, NewDate(1990, time.January, 1), d)

	require.NoError(t, d.UnmarshalJSON([]byte(`""`)))
	assert.True(t, d.IsZero())

	assert.Error(t, d.UnmarshalJSON([]byte(`"01/01/1990"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`19900101`)))
}
