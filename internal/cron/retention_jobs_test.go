package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mgallardo/edustack-backend/internal/entitlements"
	"github.com/mgallardo/edustack-backend/internal/usage"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/pagination"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

var jobClock = func() time.Time {
	return time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
}

type fakeUsageRepo struct {
	lastCutoff time.Time
	batches    []int64
	calls      int
	err        error
}

func (f *fakeUsageRepo) WithTx(tx *gorm.DB) usage.Repository { return f }
func (f *fakeUsageRepo) Create(ctx context.Context, event *models.UsageEvent) error {
	return nil
}
func (f *fakeUsageRepo) SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeUsageRepo) ListEvents(ctx context.Context, params usage.ListEventsQuery) ([]models.UsageEvent, *pagination.Cursor, error) {
	return nil, nil, nil
}
func (f *fakeUsageRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	deleted := f.batches[f.calls]
	f.calls++
	return deleted, nil
}

func TestUsageRetentionJobBatchesUntilDone(t *testing.T) {
	repo := &fakeUsageRepo{batches: []int64{10, 10, 3}}
	job, err := NewUsageRetentionJob(UsageRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:       repo,
		MaxAge:     30 * 24 * time.Hour,
		BatchLimit: 10,
		Now:        jobClock,
	})
	if err != nil {
		t.Fatalf("NewUsageRetentionJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 delete batches, got %d", repo.calls)
	}
	wantCutoff := jobClock().Add(-30 * 24 * time.Hour)
	if !repo.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("expected cutoff %s, got %s", wantCutoff, repo.lastCutoff)
	}
}

func TestUsageRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeUsageRepo{err: errors.New("boom")}
	job, err := NewUsageRetentionJob(UsageRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:   repo,
	})
	if err != nil {
		t.Fatalf("NewUsageRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeSnapshotRepo struct {
	lastCutoff time.Time
	deleted    int64
}

func (f *fakeSnapshotRepo) WithTx(tx *gorm.DB) entitlements.Repository { return f }
func (f *fakeSnapshotRepo) UpsertSnapshot(ctx context.Context, snapshot *models.EntitlementSnapshot) error {
	return nil
}
func (f *fakeSnapshotRepo) FindSnapshot(ctx context.Context, userID uuid.UUID, scope types.Scope) (*models.EntitlementSnapshot, error) {
	return nil, nil
}
func (f *fakeSnapshotRepo) DeleteSnapshotsForUser(ctx context.Context, userID uuid.UUID) error {
	return nil
}
func (f *fakeSnapshotRepo) DeleteSnapshotsForScope(ctx context.Context, scope types.Scope) error {
	return nil
}
func (f *fakeSnapshotRepo) DeleteExpiredSnapshots(ctx context.Context, before time.Time, limit int) (int64, error) {
	f.lastCutoff = before
	return f.deleted, nil
}
func (f *fakeSnapshotRepo) FindOverride(ctx context.Context, scope types.Scope) (*models.EntitlementOverride, error) {
	return nil, nil
}
func (f *fakeSnapshotRepo) UpsertOverride(ctx context.Context, override *models.EntitlementOverride) error {
	return nil
}
func (f *fakeSnapshotRepo) DeleteOverride(ctx context.Context, scope types.Scope) error {
	return nil
}

func TestSnapshotCleanupJobUsesGracePeriod(t *testing.T) {
	repo := &fakeSnapshotRepo{deleted: 4}
	job, err := NewSnapshotCleanupJob(SnapshotCleanupJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:   repo,
		Grace:  48 * time.Hour,
		Now:    jobClock,
	})
	if err != nil {
		t.Fatalf("NewSnapshotCleanupJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantCutoff := jobClock().Add(-48 * time.Hour)
	if !repo.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("expected cutoff %s, got %s", wantCutoff, repo.lastCutoff)
	}
}
