// Package memory keeps patients and outbox events in process memory. It
// follows the postgres repositories' versioning and claim rules and backs
// the service, router and worker tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository"
)

type Store struct {
	mu         sync.Mutex
	patients   map[uuid.UUID]*model.Patient
	events     []*model.OutboxEvent
	deadLetter []*model.OutboxEvent
	now        func() time.Time
}

var (
	_ repository.PatientRepository = (*Store)(nil)
	_ repository.OutboxRepository  = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		patients: make(map[uuid.UUID]*model.Patient),
		now:      time.Now,
	}
}

// SetClock replaces the clock used for timestamps and lease expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Create(_ context.Context, patient *model.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := s.now().UTC()
	patient.Version = 1
	patient.CreatedAt = now
	patient.UpdatedAt = now

	stored := *patient
	s.patients[patient.ID] = &stored
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) GetByPhone(_ context.Context, phone string) (*model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *model.Patient
	for _, p := range s.patients {
		if p.Phone != phone {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			found = p
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	out := *found
	return &out, nil
}

func (s *Store) Update(_ context.Context, patient *model.Patient, events ...*model.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(patient); err != nil {
		return err
	}

	stored := *patient
	stored.Version++
	stored.UpdatedAt = s.now().UTC()
	s.patients[patient.ID] = &stored
	s.appendEvents(events)

	patient.Version = stored.Version
	patient.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) Delete(_ context.Context, patient *model.Patient, events ...*model.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(patient); err != nil {
		return err
	}
	delete(s.patients, patient.ID)
	s.appendEvents(events)
	return nil
}

func (s *Store) checkVersion(patient *model.Patient) error {
	current, ok := s.patients[patient.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != patient.Version {
		return repository.ErrStaleVersion
	}
	return nil
}

func (s *Store) appendEvents(events []*model.OutboxEvent) {
	now := s.now().UTC()
	for _, e := range events {
		stored := *e
		if stored.Status == "" {
			stored.Status = model.OutboxStatusPending
		}
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.events = append(s.events, &stored)
	}
}

func (s *Store) ListAppointments(_ context.Context) ([]*model.AppointmentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var booked []*model.Patient
	for _, p := range s.patients {
		if p.AppointmentDate != nil {
			booked = append(booked, p)
		}
	}
	sort.SliceStable(booked, func(i, j int) bool {
		a, b := booked[i], booked[j]
		switch {
		case a.BookedOn == nil && b.BookedOn == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.BookedOn == nil:
			return false
		case b.BookedOn == nil:
			return true
		case !a.BookedOn.Equal(*b.BookedOn):
			return a.BookedOn.Before(*b.BookedOn)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	list := make([]*model.AppointmentSummary, 0, len(booked))
	for _, p := range booked {
		list = append(list, &model.AppointmentSummary{
			ID:              p.ID,
			Username:        p.Username,
			Doctor:          p.Doctor,
			AppointmentDate: p.AppointmentDate,
			BookedOn:        p.BookedOn,
			Status:          p.Status,
			Version:         p.Version,
		})
	}
	return list, nil
}

func (s *Store) CountByStatus(_ context.Context) (*model.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := &model.StatusCounts{}
	for _, p := range s.patients {
		if p.AppointmentDate == nil {
			continue
		}
		switch p.Status {
		case model.StatusPending:
			counts.Pending++
		case model.StatusConfirmed:
			counts.Confirmed++
		case model.StatusAdjusted:
			counts.Adjusted++
		}
		counts.Total++
	}
	return counts, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) ClaimPendingEvents(_ context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var claimed []*model.OutboxEvent
	for _, e := range s.events {
		if len(claimed) >= limit {
			break
		}
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		until := now.Add(lease)
		e.RetryAt = &until
		out := *e
		claimed = append(claimed, &out)
	}
	return claimed, nil
}

func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return repository.ErrNotFound
	}
	now := s.now().UTC()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.UpdatedAt = now
	return nil
}

func (s *Store) MarkRetry(_ context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &errorMessage
	e.RetryCount++
	e.RetryAt = &retryAt
	e.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) MoveToDeadLetter(_ context.Context, event *model.OutboxEvent, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(event.ID)
	if e == nil {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errorMessage
	e.UpdatedAt = s.now().UTC()

	dead := *e
	s.deadLetter = append(s.deadLetter, &dead)
	return nil
}

func (s *Store) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Events returns copies of every outbox event, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEvents(s.events)
}

// DeadLetters returns copies of the dead-lettered events.
func (s *Store) DeadLetters() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEvents(s.deadLetter)
}

func (s *Store) find(id uuid.UUID) *model.OutboxEvent {
	for _, e := range s.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func copyEvents(events []*model.OutboxEvent) []*model.OutboxEvent {
	out := make([]*model.OutboxEvent, 0, len(events))
	for _, e := range events {
		c := *e
		out = append(out, &c)
	}
	return out
}
