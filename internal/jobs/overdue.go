package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"wedhub/internal/logging"
)

// Sweeper marks past-due invoices OVERDUE.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DiscardLogger))),
		timeout: 5 * time.Minute,
	}
}

// AddOverdueSweep registers the sweep with a cron expression (standard 5-field cron or
// descriptors like @hourly).
func (s *Scheduler) AddOverdueSweep(schedule string, sweeper Sweeper) error {
	_, err := s.cron.AddFunc(schedule, func() {
		RunOverdueSweep(context.Background(), sweeper, s.timeout)
	})
	if err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", schedule, err)
	}
	logging.Logger.Infof("[jobs] overdue sweep scheduled cron=%q", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logging.Logger.Warn("[jobs] stop timed out with jobs still running")
	}
}

// RunOverdueSweep runs one sweep with a deadline and logs the outcome.
func RunOverdueSweep(ctx context.Context, sweeper Sweeper, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	n, err := sweeper.SweepOverdue(ctx)
	if err != nil {
		logging.Logger.WithError(err).Error("[jobs][overdue] sweep failed")
		return 0, err
	}
	logging.Logger.Infof("[jobs][overdue] marked=%d took=%s", n, time.Since(start).Truncate(time.Millisecond))
	return n, nil
}
