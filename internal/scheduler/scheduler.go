package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
)

// Scheduler periodically re-queries configured coordinates so provider
// caches stay warm and the first real request after a TTL expiry does not
// pay the fetch latency.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	status      *fire.Service
	coordinates []geo.Coordinates
	interval    time.Duration
	logger      *slog.Logger
}

// New creates a new Scheduler.
func New(coordinates []geo.Coordinates, interval time.Duration, status *fire.Service, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:   s,
		status:      status,
		coordinates: coordinates,
		interval:    interval,
		logger:      logger,
	}
}

// Start schedules the periodic warm job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.coordinates) == 0 {
		s.logger.Info("scheduler: no warm coordinates configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		s.logger.Debug("scheduler: warming provider caches")

		var wg sync.WaitGroup
		for _, c := range s.coordinates {
			c := c
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if _, err := s.status.StatusForCoordinates(ctx, c); err != nil {
					s.logger.Warn("scheduler: warm fetch failed",
						"lat", c.Latitude, "lon", c.Longitude, "error", err)
				}
			}()
		}
		wg.Wait()
		s.logger.Debug("scheduler: completed cache warm")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
