package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

type recorder struct {
	mu       sync.Mutex
	profiles []models.Profile
	apps     []models.Application
}

func (r *recorder) ProfileChanged(_ context.Context, _, after models.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, after)
}

func (r *recorder) ApplicationStatusChanged(_ context.Context, app models.Application, _ models.ApplicationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps = append(r.apps, app)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.profiles), len(r.apps)
}

func newClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestBusDeliversEachEventOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second := &recorder{}, &recorder{}
	require.NoError(t, NewBus(newClient(t, mr), logger.Nop()).Start(ctx, first))
	require.NoError(t, NewBus(newClient(t, mr), logger.Nop()).Start(ctx, second))

	pub := NewBus(newClient(t, mr), logger.Nop())
	pub.ProfileChanged(ctx, models.Profile{Identity: "u1", Age: 30}, models.Profile{Identity: "u1", Age: 31})
	pub.ApplicationStatusChanged(ctx, models.Application{ID: "a1", Identity: "u1", Status: models.StatusApproved}, models.StatusSubmitted)

	assert.Eventually(t, func() bool {
		p1, a1 := first.counts()
		p2, a2 := second.counts()
		return p1+p2 == 1 && a1+a2 == 1
	}, 2*time.Second, 10*time.Millisecond)

	// give a second delivery a chance to show up
	time.Sleep(50 * time.Millisecond)
	p1, a1 := first.counts()
	p2, a2 := second.counts()
	assert.Equal(t, 1, p1+p2)
	assert.Equal(t, 1, a1+a2)
}

func TestBusPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	bus := NewBus(newClient(t, mr), logger.Nop())
	require.NoError(t, bus.Start(ctx, rec))

	bus.ProfileChanged(ctx, models.Profile{Identity: "u2"}, models.Profile{Identity: "u2", Occupation: "farmer"})

	assert.Eventually(t, func() bool {
		n, _ := rec.counts()
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "farmer", rec.profiles[0].Occupation)
}
