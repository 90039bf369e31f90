// Package sweep runs periodic cleanup tasks on independent tickers.
package sweep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one periodic cleanup job. Run returns the number of rows removed.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Sweeper owns the task tickers.
type Sweeper struct {
	tasks  []Task
	logger *zap.Logger
}

// New returns a Sweeper for tasks. Tasks with a non-positive interval or nil
// Run are skipped.
func New(logger *zap.Logger, tasks ...Task) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Interval > 0 && t.Run != nil {
			kept = append(kept, t)
		}
	}
	return &Sweeper{tasks: kept, logger: logger.Named("sweep")}
}

// Run executes every task once immediately and then on its interval until ctx
// is cancelled. A failing task is logged and retried on its next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	wg.Wait()
	return ctx.Err()
}

// RunOnce executes every task a single time, in order.
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, t := range s.tasks {
		s.runTask(ctx, t)
	}
}

func (s *Sweeper) loop(ctx context.Context, t Task) {
	s.runTask(ctx, t)
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTask(ctx, t)
		}
	}
}

func (s *Sweeper) runTask(ctx context.Context, t Task) {
	start := time.Now()
	n, err := t.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("sweep failed", zap.String("task", t.Name), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("sweep removed rows",
			zap.String("task", t.Name),
			zap.Int64("rows", n),
			zap.Duration("took", time.Since(start)))
	}
}
