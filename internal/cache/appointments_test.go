package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medibook-api/internal/model"
)

func TestAppointmentCache(t *testing.T) {
	ctx := context.Background()
	c := NewAppointmentCache(time.Minute, time.Minute)

	gen, ok := c.Generation(ctx)
	require.True(t, ok)
	_, ok = c.Appointments(gen)
	assert.False(t, ok)

	list := []*model.AppointmentSummary{{Username: "Jane"}}
	c.SetAppointments(gen, list)
	c.SetSummary(gen, &model.StatusCounts{Pending: 1, Total: 1})

	got, ok := c.Appointments(gen)
	assert.True(t, ok)
	assert.Equal(t, list, got)

	counts, ok := c.Summary(gen)
	assert.True(t, ok)
	assert.Equal(t, 1, counts.Pending)

	require.NoError(t, c.Invalidate(ctx))
	next, _ := c.Generation(ctx)
	assert.NotEqual(t, gen, next)
	_, ok = c.Appointments(next)
	assert.False(t, ok)
	_, ok = c.Summary(next)
	assert.False(t, ok)
}

func TestAppointmentCacheIgnoresValuesFromOlderGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewAppointmentCache(time.Minute, time.Minute)

	// a read takes the generation, a write lands, then the read stores its rows
	gen, _ := c.Generation(ctx)
	require.NoError(t, c.Invalidate(ctx))
	c.SetAppointments(gen, []*model.AppointmentSummary{{Username: "Jane"}})

	current, _ := c.Generation(ctx)
	_, ok := c.Appointments(current)
	assert.False(t, ok)
}

func TestRedisGenerationsAreShared(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a := NewAppointmentCache(time.Minute, time.Minute, WithGenerations(NewRedisGenerations(rdb, "")))
	b := NewAppointmentCache(time.Minute, time.Minute, WithGenerations(NewRedisGenerations(rdb, "")))

	gen, ok := a.Generation(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(0), gen)
	a.SetAppointments(gen, []*model.AppointmentSummary{{Username: "Jane"}})

	require.NoError(t, b.Invalidate(ctx))

	gen, ok = a.Generation(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(1), gen)
	_, ok = a.Appointments(gen)
	assert.False(t, ok)

	stored, err := mr.Get(DefaultGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, "1", stored)
}

func TestRedisGenerationsUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	c := NewAppointmentCache(time.Minute, time.Minute, WithGenerations(NewRedisGenerations(rdb, "")))
	gen, _ := c.Generation(ctx)
	c.SetAppointments(gen, []*model.AppointmentSummary{{Username: "Jane"}})

	require.NoError(t, rdb.Close())

	_, ok := c.Generation(ctx)
	assert.False(t, ok)
	assert.Error(t, c.Invalidate(ctx))
	// the local copy is dropped regardless
	_, ok = c.Appointments(gen)
	assert.False(t, ok)
}

func TestNilAppointmentCache(t *testing.T) {
	var c *AppointmentCache
	c.SetAppointments(0, nil)
	assert.NoError(t, c.Invalidate(context.Background()))
	_, ok := c.Generation(context.Background())
	assert.False(t, ok)
	_, ok = c.Appointments(0)
	assert.False(t, ok)
}
