package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/observability"
)

// Rearm triggers.
const (
	TriggerStartup = "startup"
	TriggerBoot    = "boot_completed"
	TriggerCron    = "cron"
)

// PendingScheduler re-derives pending jobs from persisted state.
type PendingScheduler interface {
	ScheduleAllPendingNotifications(ctx context.Context) (int, error)
}

// Rearmer restores notification jobs lost when the process stopped.
type Rearmer struct {
	scheduler PendingScheduler
	logger    zerolog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	wg      sync.WaitGroup
	stopped bool
}

// NewRearmer constructs a re-armer over the scheduler.
func NewRearmer(scheduler PendingScheduler, logger zerolog.Logger) *Rearmer {
	return &Rearmer{
		scheduler: scheduler,
		logger:    logger.With().Str("component", "notification_rearm").Logger(),
		timeout:   time.Minute,
	}
}

// Run re-arms every pending notification synchronously.
func (r *Rearmer) Run(ctx context.Context, trigger string) (int, error) {
	observability.RearmRuns().WithLabelValues(trigger).Inc()

	count, err := r.scheduler.ScheduleAllPendingNotifications(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("trigger", trigger).Msg("re-arm failed")
		return count, err
	}
	r.logger.Info().Str("trigger", trigger).Int("scheduled", count).Msg("re-arm completed")
	return count, nil
}

// RunAsync re-arms in a background goroutine. It is a no-op once Stop has
// been called.
func (r *Rearmer) RunAsync(trigger string) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.logger.Debug().Str("trigger", trigger).Msg("re-arm ignored after stop")
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, _ = r.Run(ctx, trigger)
	}()
}

// StartCron schedules periodic re-arms. An empty spec is a no-op.
func (r *Rearmer) StartCron(spec string) error {
	if spec == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return fmt.Errorf("rearmer stopped")
	}
	if r.cron != nil {
		return fmt.Errorf("rearm cron already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, _ = r.Run(ctx, TriggerCron)
	}); err != nil {
		return fmt.Errorf("invalid rearm schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info().Str("schedule", spec).Msg("periodic re-arm enabled")
	return nil
}

// Stop halts the cron schedule and waits for background runs.
func (r *Rearmer) Stop() {
	r.mu.Lock()
	r.stopped = true
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	r.wg.Wait()
}
