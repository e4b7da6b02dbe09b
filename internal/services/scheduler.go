package services

import (
	"context"
	"sync"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
)

// ScheduledJob is a task the scheduler runs on a fixed interval.
type ScheduledJob struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job once at start and then on its own ticker. A failed
// run is logged and retried on the next tick.
type Scheduler struct {
	jobs   []ScheduledJob
	logger *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger *logrus.Logger, jobs ...ScheduledJob) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   jobs,
		logger: logging.ForComponent(logger, "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.logger.WithField("job", job.Name).Warn("Skipping job without interval")
			continue
		}
		s.wg.Add(1)
		go s.runWorker(job)
	}
	s.logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runWorker(job ScheduledJob) {
	defer s.wg.Done()

	s.runJob(job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runJob(job)
		}
	}
}

func (s *Scheduler) runJob(job ScheduledJob) {
	start := time.Now()
	entry := s.logger.WithField("job", job.Name)
	if err := job.Run(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		entry.WithError(err).
			WithField("root_cause", utils.RootCause(err).Error()).
			Error("Scheduled job failed")
		return
	}
	entry.WithField(logging.FieldDuration, time.Since(start).Milliseconds()).Debug("Scheduled job completed")
}
