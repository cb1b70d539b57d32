package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mgallardo/edustack-backend/internal/usage"
	"github.com/mgallardo/edustack-backend/pkg/logger"
)

const (
	defaultUsageMaxAge     = 90 * 24 * time.Hour
	defaultCleanupBatch    = 5000
	usageRetentionJobName  = "usage_retention"
	snapshotCleanupJobName = "snapshot_cleanup"
)

// UsageRetentionJobParams configures the usage ledger retention job.
type UsageRetentionJobParams struct {
	Logger     *logger.Logger
	Repo       usage.Repository
	MaxAge     time.Duration
	BatchLimit int
	Now        func() time.Time
}

// NewUsageRetentionJob builds the job that trims old usage events. The
// ledger is append-only at the application level; retention is the only
// thing that deletes from it.
func NewUsageRetentionJob(params UsageRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultUsageMaxAge
	}
	batch := params.BatchLimit
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &usageRetentionJob{
		logg:   params.Logger,
		repo:   params.Repo,
		maxAge: maxAge,
		batch:  batch,
		now:    now,
	}, nil
}

type usageRetentionJob struct {
	logg   *logger.Logger
	repo   usage.Repository
	maxAge time.Duration
	batch  int
	now    func() time.Time
}

func (j *usageRetentionJob) Name() string { return usageRetentionJobName }

func (j *usageRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.maxAge)
	var total int64
	for {
		deleted, err := j.repo.DeleteOlderThan(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("delete usage events: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	fields := map[string]any{"deleted": total, "cutoff": cutoff}
	j.logg.Info(j.logg.WithFields(ctx, fields), "usage retention cycle complete")
	return nil
}
