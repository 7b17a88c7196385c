package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
)

// Scheduler periodically runs the fetch-reconcile-save cycle, replacing the
// external cron trigger.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector *meteo.Collector
	interval  time.Duration
	log       logrus.FieldLogger
}

// New creates a new Scheduler.
func New(collector *meteo.Collector, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		collector: collector,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// A non-positive interval disables scheduling entirely.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("scheduler disabled; captures run only via HTTP triggers")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.log.Info("running scheduled capture")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.collector.Run(ctx); err != nil {
			s.log.WithError(err).Error("scheduled capture failed")
		}
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
