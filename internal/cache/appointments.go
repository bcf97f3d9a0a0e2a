package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/medibook-api/internal/model"
)

const (
	keyAppointments = "admin:appointments"
	keySummary      = "admin:summary"
)

// entry is a cached value tagged with the generation it was read under.
type entry struct {
	gen   int64
	value interface{}
}

// AppointmentCache holds the admin listing between writes. Every lifecycle
// change must call Invalidate, which bumps the generation. A value is only
// served while its generation is current, so a read that started before a
// write can never bring back the old rows.
type AppointmentCache struct {
	store       *gocache.Cache
	generations Generations
}

type Option func(*AppointmentCache)

// WithGenerations shares the generation counter, e.g. across API instances via Redis.
func WithGenerations(g Generations) Option {
	return func(c *AppointmentCache) { c.generations = g }
}

func NewAppointmentCache(ttl, cleanupInterval time.Duration, opts ...Option) *AppointmentCache {
	c := &AppointmentCache{
		store:       gocache.New(ttl, cleanupInterval),
		generations: NewLocalGenerations(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation must be taken before the store is queried. ok is false when the
// counter cannot be read; callers then bypass the cache.
func (c *AppointmentCache) Generation(ctx context.Context) (gen int64, ok bool) {
	if c == nil {
		return 0, false
	}
	gen, err := c.generations.Current(ctx)
	if err != nil {
		return 0, false
	}
	return gen, true
}

func (c *AppointmentCache) Appointments(gen int64) ([]*model.AppointmentSummary, bool) {
	v, ok := c.get(keyAppointments, gen)
	if !ok {
		return nil, false
	}
	list, ok := v.([]*model.AppointmentSummary)
	return list, ok
}

func (c *AppointmentCache) SetAppointments(gen int64, list []*model.AppointmentSummary) {
	c.set(keyAppointments, gen, list)
}

func (c *AppointmentCache) Summary(gen int64) (*model.StatusCounts, bool) {
	v, ok := c.get(keySummary, gen)
	if !ok {
		return nil, false
	}
	counts, ok := v.(*model.StatusCounts)
	return counts, ok
}

func (c *AppointmentCache) SetSummary(gen int64, counts *model.StatusCounts) {
	c.set(keySummary, gen, counts)
}

// Invalidate bumps the generation and drops the local copies. The local copies
// are dropped even when the shared counter could not be bumped.
func (c *AppointmentCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	err := c.generations.Bump(ctx)
	c.store.Delete(keyAppointments)
	c.store.Delete(keySummary)
	return err
}

func (c *AppointmentCache) get(key string, gen int64) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(entry)
	if !ok || e.gen != gen {
		return nil, false
	}
	return e.value, true
}

func (c *AppointmentCache) set(key string, gen int64, value interface{}) {
	if c == nil {
		return
	}
	c.store.SetDefault(key, entry{gen: gen, value: value})
}
