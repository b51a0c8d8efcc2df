package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/metrics"
)

const refreshTimeout = 30 * time.Second

// Refresher reloads a cached catalog and reports how many schemes it now holds.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Scheduler runs the periodic catalog refresh.
type Scheduler struct {
	scheduler gocron.Scheduler
	catalog   Refresher
	interval  time.Duration
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewScheduler(catalog Refresher, interval time.Duration, m *metrics.Metrics, log *logger.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: scheduler,
		catalog:   catalog,
		interval:  interval,
		metrics:   m,
		log:       log.With("component", "jobs"),
	}, nil
}

// Start registers the refresh job and starts the scheduler. The first run
// happens one interval from now.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.RefreshCatalog(ctx) }),
		gocron.WithName("catalog_refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register catalog refresh: %w", err)
	}
	s.scheduler.Start()
	s.log.Info("scheduler started", "catalog_refresh_interval", s.interval.String())
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// RefreshCatalog reloads the catalog once. Failures keep the previous cache
// contents in place.
func (s *Scheduler) RefreshCatalog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	n, err := s.catalog.Refresh(ctx)
	if err != nil {
		s.log.Warn("catalog refresh failed", "error", err)
		s.count("error")
		return
	}
	s.log.Debug("catalog refreshed", "schemes", n)
	s.count("ok")
}

func (s *Scheduler) count(result string) {
	if s.metrics != nil {
		s.metrics.CatalogRefreshes.WithLabelValues(result).Inc()
	}
}
