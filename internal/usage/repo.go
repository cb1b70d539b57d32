package usage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/pagination"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// Repository handles the append-only usage ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.UsageEvent) error
	SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error)
	ListEvents(ctx context.Context, params ListEventsQuery) ([]models.UsageEvent, *pagination.Cursor, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// ListEventsQuery configures usage event list queries.
type ListEventsQuery struct {
	Scope  types.Scope
	Metric *string
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.UsageEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// SumForScope totals quantities for a scope's metric. A nil since means
// all-time.
func (r *repository) SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("scope_type = ? AND scope_id = ? AND metric = ?", scope.Type, scope.ID, metric)
	if since != nil {
		query = query.Where("occurred_at >= ?", *since)
	}

	var total *int64
	if err := query.Select("SUM(quantity)").Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) ListEvents(ctx context.Context, params ListEventsQuery) ([]models.UsageEvent, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("scope_type = ? AND scope_id = ?", params.Scope.Type, params.Scope.ID)
	if params.Metric != nil {
		query = query.Where("metric = ?", *params.Metric)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var events []models.UsageEvent
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&events).Error; err != nil {
		return nil, nil, err
	}

	if len(events) > limit {
		events = events[:limit]
		// cursor marks the last returned row; the next query's strict
		// (created_at, id) < comparison resumes right after it
		last := events[limit-1]
		return events, &pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		}, nil
	}

	return events, nil, nil
}

// DeleteOlderThan removes a batch of events that occurred before the cutoff
// and reports how many rows went away.
func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 5000
	}
	result := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.
			Model(&models.UsageEvent{}).
			Select("id").
			Where("occurred_at < ?", cutoff).
			Limit(limit),
		).
		Delete(&models.UsageEvent{})
	return result.RowsAffected, result.Error
}
