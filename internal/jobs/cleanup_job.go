package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/repository"
)

const historyRetention = 90 * 24 * time.Hour

// CleanupJob prunes posting history past the retention window and sweeps
// temporary connections whose completion handoff never happened.
type CleanupJob struct {
	ph repository.PostingHistoryRepository
	tc repository.TempConnectionRepository
}

func NewCleanupJob(ph repository.PostingHistoryRepository, tc repository.TempConnectionRepository) *CleanupJob {
	return &CleanupJob{ph: ph, tc: tc}
}

func (c *CleanupJob) CleanupHistory() {
	ctx := context.Background()

	cutoff := time.Now().Add(-historyRetention)
	deleted, err := c.ph.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	if deleted > 0 {
		slog.Info("pruned posting history", "deleted", deleted, "cutoff", cutoff)
	}
}

func (c *CleanupJob) CleanupTempConnections() {
	ctx := context.Background()

	deleted, err := c.tc.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		slog.Info(err.Error())
		return
	}

	if deleted > 0 {
		slog.Info("removed expired temporary connections", "deleted", deleted)
	}
}
