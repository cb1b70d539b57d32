package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mgallardo/edustack-backend/internal/entitlements"
	"github.com/mgallardo/edustack-backend/pkg/logger"
)

const defaultSnapshotGrace = 48 * time.Hour

// SnapshotCleanupJobParams configures the expired-snapshot purge job.
type SnapshotCleanupJobParams struct {
	Logger     *logger.Logger
	Repo       entitlements.Repository
	Grace      time.Duration
	BatchLimit int
	Now        func() time.Time
}

// NewSnapshotCleanupJob builds the job that removes entitlement snapshots
// that expired longer than the grace period ago. Recently expired rows stay
// so resolution failures can still serve them as a selective fallback.
func NewSnapshotCleanupJob(params SnapshotCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultSnapshotGrace
	}
	batch := params.BatchLimit
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &snapshotCleanupJob{
		logg:  params.Logger,
		repo:  params.Repo,
		grace: grace,
		batch: batch,
		now:   now,
	}, nil
}

type snapshotCleanupJob struct {
	logg  *logger.Logger
	repo  entitlements.Repository
	grace time.Duration
	batch int
	now   func() time.Time
}

func (j *snapshotCleanupJob) Name() string { return snapshotCleanupJobName }

func (j *snapshotCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.grace)
	var total int64
	for {
		deleted, err := j.repo.DeleteExpiredSnapshots(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("delete expired snapshots: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	fields := map[string]any{"deleted": total, "cutoff": cutoff}
	j.logg.Info(j.logg.WithFields(ctx, fields), "snapshot cleanup cycle complete")
	return nil
}
