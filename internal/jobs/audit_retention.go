// Package jobs holds the background jobs started with the API server.
//
// audit_retention.go implements AuditRetentionJob, which prunes audit_logs
// entries older than audit.retention_days. Pruning is idempotent: a run after
// a crash simply deletes whatever is still past the cutoff.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRetentionInterval is how often the retention job runs
const DefaultRetentionInterval = 24 * time.Hour

// AuditPruner deletes audit entries older than a cutoff
type AuditPruner interface {
	DeleteAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetentionJob periodically prunes old audit entries
type AuditRetentionJob struct {
	pruner    AuditPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAuditRetentionJob keeps retentionDays of audit history
func NewAuditRetentionJob(pruner AuditPruner, retentionDays int, interval time.Duration) *AuditRetentionJob {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	return &AuditRetentionJob{
		pruner:    pruner,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs a pass immediately and then on every interval until Stop is
// called or ctx is cancelled
func (j *AuditRetentionJob) Start(ctx context.Context) {
	slog.Info("audit retention job started", "retention", j.retention, "interval", j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.RunOnce(ctx)

		for {
			select {
			case <-ticker.C:
				j.RunOnce(ctx)
			case <-j.stopCh:
				slog.Info("audit retention job stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight pass
func (j *AuditRetentionJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}

// RunOnce prunes everything older than the retention window
func (j *AuditRetentionJob) RunOnce(ctx context.Context) {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.pruner.DeleteAuditLogsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("audit retention pass failed", "cutoff", cutoff, "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("pruned audit logs", "deleted", deleted, "cutoff", cutoff)
	}
}
