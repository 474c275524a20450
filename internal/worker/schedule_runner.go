package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/coursemart/internal/usecase"
)

const defaultInterval = time.Hour

// DueProcessor exposes the schedule pass required by the runner.
type DueProcessor interface {
	RunSchedule(ctx context.Context) (usecase.ScheduleReport, error)
}

// ScheduleRunner runs a payment schedule pass at start and then on every tick.
type ScheduleRunner struct {
	processor DueProcessor
	interval  time.Duration
	logger    *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewScheduleRunner constructs the periodic schedule runner.
func NewScheduleRunner(processor DueProcessor, interval time.Duration, logger *slog.Logger) *ScheduleRunner {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &ScheduleRunner{
		processor: processor,
		interval:  interval,
		logger:    logger,
	}
}

// Start launches background processing. A second call is a no-op.
func (r *ScheduleRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(runCtx)
}

// Stop cancels the running pass and waits for it to return.
func (r *ScheduleRunner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *ScheduleRunner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *ScheduleRunner) runOnce(ctx context.Context) {
	start := time.Now()
	report, err := r.processor.RunSchedule(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("schedule pass failed", slog.String("error", err.Error()))
		return
	}
	r.logger.Info("schedule pass finished",
		slog.Int("orders", report.Orders),
		slog.Int("charged", report.Charged),
		slog.Int("refused", report.Refused),
		slog.Int("settled", report.Settled),
		slog.Int("skipped", report.Skipped),
		slog.Int("unavailable", report.Unavailable),
		slog.Int("failed", report.Failed),
		slog.Int("transitions", report.Transitions),
		slog.Duration("took", time.Since(start)),
	)
}
