package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository/memory"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
)

type published struct {
	eventType string
	payload   interface{}
}

type fakePublisher struct {
	got []published
	err error
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, published{eventType, payload})
	return nil
}

type fakeNotifier struct {
	sent []*model.AppointmentNotification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, msg *model.AppointmentNotification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type processorFixture struct {
	now       time.Time
	store     *memory.Store
	publisher *fakePublisher
	notifier  *fakeNotifier
	metrics   *metrics.Metrics
	processor *OutboxProcessor
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	f := &processorFixture{
		now:       time.Date(2030, time.March, 10, 9, 0, 0, 0, time.UTC),
		store:     memory.NewStore(),
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
		metrics:   metrics.NewMetricsWith(prometheus.NewRegistry(), "medibook", "test"),
	}
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)

	p, err := NewOutboxProcessor(f.store, f.publisher, f.notifier, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		MaxAttempts:  3,
		RetryDelay:   10 * time.Second,
		Lease:        time.Minute,
	}, logger.Nop(), f.metrics)
	require.NoError(t, err)
	p.now = clock
	f.processor = p
	return f
}

// seed stores a confirmed patient together with its outbox event.
func (f *processorFixture) seed(t *testing.T, action model.Action) *model.Patient {
	t.Helper()
	ctx := context.Background()
	doctor := "Dr. Nuhu Gidado"
	date := time.Date(2030, time.March, 11, 10, 0, 0, 0, time.UTC)
	p := &model.Patient{Username: "Jane", Phone: "+2348012345678", Email: "jane@example.com"}
	require.NoError(t, f.store.Create(ctx, p))

	p.Doctor = &doctor
	p.AppointmentDate = &date
	p.Status = model.StatusConfirmed
	event, err := model.NewAppointmentOutboxEvent(p, action, f.now)
	require.NoError(t, err)
	require.NoError(t, f.store.Update(ctx, p, event))
	return p
}

func TestProcessBatchDelivers(t *testing.T) {
	f := newProcessorFixture(t)
	f.seed(t, model.ActionConfirm)
	f.seed(t, model.ActionBook)

	n, err := f.processor.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// only confirm carries an email
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "jane@example.com", f.notifier.sent[0].Email)

	require.Len(t, f.publisher.got, 2)
	assert.Equal(t, model.EventAppointmentConfirmed, f.publisher.got[0].eventType)
	assert.Equal(t, model.EventAppointmentBooked, f.publisher.got[1].eventType)

	for _, e := range f.store.Events() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OutboxEventsProcessed))

	// nothing left to do
	n, err = f.processor.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.notifier.sent, 1)
}

func TestProcessBatchRetriesWithBackoff(t *testing.T) {
	f := newProcessorFixture(t)
	f.seed(t, model.ActionConfirm)
	f.notifier.err = errors.New("smtp down")
	ctx := context.Background()

	n, err := f.processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusRetry, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	assert.Equal(t, f.now.Add(10*time.Second), *events[0].RetryAt)

	// not due yet
	n, err = f.processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, f.store.Events()[0].RetryCount)

	f.notifier.err = nil
	f.now = f.now.Add(11 * time.Second)
	n, err = f.processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.notifier.sent, 1)
	assert.Equal(t, model.OutboxStatusProcessed, f.store.Events()[0].Status)
}

func TestProcessBatchDeadLetters(t *testing.T) {
	f := newProcessorFixture(t)
	f.seed(t, model.ActionConfirm)
	f.publisher.err = errors.New("redis down")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.processor.ProcessBatch(ctx)
		require.NoError(t, err)
		f.now = f.now.Add(time.Hour)
	}

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	require.Len(t, f.store.DeadLetters(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OutboxEventsDeadLetter))
}

func TestProcessBatchDeadLettersBadPayload(t *testing.T) {
	f := newProcessorFixture(t)
	p := f.seed(t, model.ActionBook)

	broken := &model.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: p.ID,
		EventType:   model.EventAppointmentBooked,
		Payload:     []byte("{not json"),
		Status:      model.OutboxStatusPending,
	}
	require.NoError(t, f.store.Update(context.Background(), p, broken))

	n, err := f.processor.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.store.DeadLetters(), 1)
	assert.Equal(t, broken.ID, f.store.DeadLetters()[0].ID)
}

func TestBackoff(t *testing.T) {
	p := &OutboxProcessor{config: OutboxProcessorConfig{RetryDelay: time.Minute}}
	assert.Equal(t, time.Minute, p.backoff(0))
	assert.Equal(t, 4*time.Minute, p.backoff(2))
	assert.Equal(t, time.Hour, p.backoff(10))
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewStore(), nil, nil, OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}

func TestRetentionCleanup(t *testing.T) {
	f := newProcessorFixture(t)
	f.seed(t, model.ActionBook)
	_, err := f.processor.ProcessBatch(context.Background())
	require.NoError(t, err)

	w := NewRetentionWorker(f.store, 24*time.Hour, logger.Nop())
	w.now = func() time.Time { return f.now.Add(time.Hour) }
	rows, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rows)

	w.now = func() time.Time { return f.now.Add(25 * time.Hour) }
	rows, err = w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Empty(t, f.store.Events())
}

func TestRetentionSchedule(t *testing.T) {
	w := NewRetentionWorker(memory.NewStore(), time.Hour, logger.Nop())

	s, err := w.Schedule(context.Background(), "0 3 * * *")
	require.NoError(t, err)
	defer s.Stop()
	assert.Len(t, s.Jobs(), 1)

	_, err = w.Schedule(context.Background(), "not a cron")
	assert.Error(t, err)
}
