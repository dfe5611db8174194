package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pending-export reconcile on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// ScheduleReconcile registers w.ProcessPending under spec, a standard
// five-field cron expression or a descriptor such as "@every 1m".
func (s *Scheduler) ScheduleReconcile(ctx context.Context, spec string, w *ExportWorker) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		if err := w.ProcessPending(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled export reconcile failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reconcile %q: %w", spec, err)
	}
	return id, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
