package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/metrics"
)

type countingCatalog struct {
	calls int32
	err   error
}

func (c *countingCatalog) Refresh(context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return 3, c.err
}

func TestSchedulerRefreshesPeriodically(t *testing.T) {
	cat := &countingCatalog{}
	m := metrics.New(prometheus.NewRegistry())
	s, err := NewScheduler(cat, 50*time.Millisecond, m, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Shutdown()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&cat.calls) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.CatalogRefreshes.WithLabelValues("ok")), 2.0)
}

func TestRefreshFailureIsCounted(t *testing.T) {
	cat := &countingCatalog{err: errors.New("database is locked")}
	m := metrics.New(prometheus.NewRegistry())
	s, err := NewScheduler(cat, time.Minute, m, logger.Nop())
	require.NoError(t, err)

	s.RefreshCatalog(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogRefreshes.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CatalogRefreshes.WithLabelValues("ok")))
}

func TestRefreshSkippedAfterCancel(t *testing.T) {
	cat := &countingCatalog{}
	s, err := NewScheduler(cat, time.Minute, nil, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RefreshCatalog(ctx)
	assert.EqualValues(t, 0, atomic.LoadInt32(&cat.calls))
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	_, err := NewScheduler(&countingCatalog{}, 0, nil, logger.Nop())
	assert.Error(t, err)
}
