package patient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medibook-api/internal/lock"
	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository/memory"
	"github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/validator"
)

const testPhone = "+2348012345678"

var testNow = time.Date(2030, time.March, 10, 9, 0, 0, 0, time.UTC)

// countingStore records how often the store is reached.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	calls int
}

func (s *countingStore) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingStore) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	s.hit()
	return s.Store.GetByPhone(ctx, phone)
}

func (s *countingStore) Create(ctx context.Context, p *model.Patient) error {
	s.hit()
	return s.Store.Create(ctx, p)
}

type fakeLocker struct {
	keys []string
	err  error
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func newTestService(t *testing.T) (*Service, *countingStore, *fakeLocker) {
	t.Helper()
	store := &countingStore{Store: memory.NewStore()}
	store.SetClock(func() time.Time { return testNow })
	locker := &fakeLocker{}
	svc := NewService(store, locker, validator.New(), WithClock(func() time.Time { return testNow }))
	return svc, store, locker
}

func intakeJane() *model.IntakeRequest {
	return &model.IntakeRequest{Username: "Jane", Phone: testPhone, Email: "jane@example.com"}
}

func registration() *model.RegistrationRequest {
	return &model.RegistrationRequest{
		Address: "12 Allen Avenue, Lagos",
		DOB:     model.NewDate(1990, time.January, 1),
		Gender:  model.GenderFemale,
	}
}

func booking(date time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		Doctor:          "Dr. Nuhu Gidado",
		Reason:          "Annual check-up",
		Comment:         "Morning preferred",
		AppointmentDate: date,
	}
}

func TestIntakeNewPatient(t *testing.T) {
	svc, _, locker := newTestService(t)

	result, err := svc.Intake(context.Background(), intakeJane())
	require.NoError(t, err)
	assert.Equal(t, model.RouteRegistration, result.Route)
	assert.Equal(t, testPhone, result.Phone)
	assert.Equal(t, model.StatusNone, result.Patient.Status)
	assert.Equal(t, []string{testPhone}, locker.keys)
}

func TestIntakeInvalidPhoneNeverReachesStore(t *testing.T) {
	svc, store, locker := newTestService(t)

	req := intakeJane()
	req.Phone = "08012345678"
	_, err := svc.Intake(context.Background(), req)

	require.Error(t, err)
	appErr := errors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrValidation, appErr.Code)
	assert.Equal(t, "phone", appErr.Fields[0].Field)
	assert.Zero(t, store.calls)
	assert.Empty(t, locker.keys)
}

func TestIntakeReturningPatientRoutes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Intake(ctx, intakeJane())
	require.NoError(t, err)

	// no dob yet: back to registration, contact details updated in place
	again := intakeJane()
	again.Email = "jane.doe@example.com"
	result, err := svc.Intake(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, model.RouteRegistration, result.Route)
	assert.Equal(t, first.Patient.ID, result.Patient.ID)
	assert.Equal(t, "jane.doe@example.com", result.Patient.Email)

	_, err = svc.Register(ctx, testPhone, registration())
	require.NoError(t, err)

	result, err = svc.Intake(ctx, intakeJane())
	require.NoError(t, err)
	assert.Equal(t, model.RouteBooking, result.Route)
	assert.Equal(t, first.Patient.ID, result.Patient.ID)
}

func TestIntakeLockHeld(t *testing.T) {
	svc, _, locker := newTestService(t)
	locker.err = lock.ErrLockNotAcquired

	_, err := svc.Intake(context.Background(), intakeJane())
	assert.True(t, errors.IsCode(err, errors.ErrConflict))
}

func TestRegisterValidatesDOB(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Intake(ctx, intakeJane())
	require.NoError(t, err)

	tests := []struct {
		name string
		dob  model.Date
		ok   bool
	}{
		{"earliest allowed", model.NewDate(1900, time.January, 1), true},
		{"before 1900", model.NewDate(1899, time.December, 31), false},
		{"today", model.NewDate(2030, time.March, 10), true},
		{"tomorrow", model.NewDate(2030, time.March, 11), false},
		{"missing", model.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := registration()
			req.DOB = tt.dob
			_, err := svc.Register(ctx, testPhone, req)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsCode(err, errors.ErrValidation))
		})
	}
}

func TestRegisterUnknownPhone(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "+2348099999999", registration())
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestBookRequiresFutureDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Intake(ctx, intakeJane())
	require.NoError(t, err)

	_, err = svc.Book(ctx, testPhone, booking(testNow))
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = svc.Book(ctx, testPhone, booking(testNow.Add(-time.Hour)))
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	result, err := svc.Book(ctx, testPhone, booking(testNow.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, model.RouteSuccess, result.Route)
}

func TestBookingFlow(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Intake(ctx, intakeJane())
	require.NoError(t, err)
	_, err = svc.Register(ctx, testPhone, registration())
	require.NoError(t, err)

	tomorrow := time.Date(2030, time.March, 11, 10, 0, 0, 0, time.UTC)
	result, err := svc.Book(ctx, testPhone, booking(tomorrow))
	require.NoError(t, err)

	p := result.Patient
	assert.Equal(t, model.StatusPending, p.Status)
	require.NotNil(t, p.Doctor)
	assert.Equal(t, "Dr. Nuhu Gidado", *p.Doctor)
	require.NotNil(t, p.BookedOn)
	assert.True(t, testNow.Equal(*p.BookedOn))

	details, err := svc.Appointment(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, details.Status)
	assert.True(t, tomorrow.Equal(*details.AppointmentDate))

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentBooked, events[0].EventType)
	env, err := events[0].Envelope()
	require.NoError(t, err)
	assert.Nil(t, env.Notification)
}

func TestProfileAndAppointmentLookups(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Profile(ctx, "not-a-phone")
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = svc.Intake(ctx, intakeJane())
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "Jane", profile.Username)
	assert.False(t, profile.ProfileComplete)

	_, err = svc.Appointment(ctx, testPhone)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestPhonePathParam(t *testing.T) {
	tests := map[string]string{
		"+2348012345678":  testPhone,
		" 2348012345678":  testPhone,
		"+2348012345678 ": testPhone,
		// gin decodes once; an escape left in the value is not decoded again
		"%2B2348012345678": "%2B2348012345678",
	}
	for param, want := range tests {
		assert.Equal(t, want, PhonePathParam(param), param)
	}
}
