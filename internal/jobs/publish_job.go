package job

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/xscheduler/internal/service"
)

// PublishJob is the periodic side of publishing: it sweeps expired leases and
// then scans for due posts the task queue has not delivered.
type PublishJob struct {
	ps      service.PostService
	timeout time.Duration
	running atomic.Bool
}

func NewPublishJob(ps service.PostService, timeout time.Duration) *PublishJob {
	return &PublishJob{
		ps:      ps,
		timeout: timeout,
	}
}

// Run is registered with cron. A tick that starts while the previous one is
// still going is dropped.
func (j *PublishJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		slog.Info("previous publish scan still running, skipping tick")
		return
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.SweepLeases(ctx)

	if _, err := j.ps.ProcessDuePosts(ctx); err != nil {
		slog.Error("scheduled post scan failed", "error", err)
	}
}

func (j *PublishJob) SweepLeases(ctx context.Context) {
	n, err := j.ps.FailExpiredLeases(ctx)
	if err != nil {
		slog.Error("lease sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("expired publish leases resolved", "count", n)
	}
}
