package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// Repository persists entitlement snapshots and overrides.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertSnapshot(ctx context.Context, snapshot *models.EntitlementSnapshot) error
	FindSnapshot(ctx context.Context, userID uuid.UUID, scope types.Scope) (*models.EntitlementSnapshot, error)
	DeleteSnapshotsForUser(ctx context.Context, userID uuid.UUID) error
	DeleteSnapshotsForScope(ctx context.Context, scope types.Scope) error
	DeleteExpiredSnapshots(ctx context.Context, before time.Time, limit int) (int64, error)
	FindOverride(ctx context.Context, scope types.Scope) (*models.EntitlementOverride, error)
	UpsertOverride(ctx context.Context, override *models.EntitlementOverride) error
	DeleteOverride(ctx context.Context, scope types.Scope) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an entitlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertSnapshot writes the snapshot with last-write-wins semantics on the
// (user_id, scope_type, scope_id) key. Concurrent refreshes both computed
// from current data, so whichever lands last is equally valid.
func (r *repository) UpsertSnapshot(ctx context.Context, snapshot *models.EntitlementSnapshot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "scope_type"}, {Name: "scope_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source", "plan_type", "entitlements", "expires_at", "updated_at",
			}),
		}).
		Create(snapshot).Error
}

func (r *repository) FindSnapshot(ctx context.Context, userID uuid.UUID, scope types.Scope) (*models.EntitlementSnapshot, error) {
	var snapshot models.EntitlementSnapshot
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND scope_type = ? AND scope_id = ?", userID, scope.Type, scope.ID).
		First(&snapshot).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) DeleteSnapshotsForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.EntitlementSnapshot{}).Error
}

func (r *repository) DeleteSnapshotsForScope(ctx context.Context, scope types.Scope) error {
	query := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID)
	if scope.Type == enums.ScopeTypeUser {
		query = r.db.WithContext(ctx).
			Where("(scope_type = ? AND scope_id = ?) OR user_id = ?", scope.Type, scope.ID, scope.ID)
	}
	return query.Delete(&models.EntitlementSnapshot{}).Error
}

// DeleteExpiredSnapshots removes a batch of snapshots whose expiry is before
// the cutoff and reports how many rows went away.
func (r *repository) DeleteExpiredSnapshots(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 5000
	}
	result := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.
			Model(&models.EntitlementSnapshot{}).
			Select("id").
			Where("expires_at < ?", before).
			Limit(limit),
		).
		Delete(&models.EntitlementSnapshot{})
	return result.RowsAffected, result.Error
}

func (r *repository) FindOverride(ctx context.Context, scope types.Scope) (*models.EntitlementOverride, error) {
	var override models.EntitlementOverride
	if err := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID).
		First(&override).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &override, nil
}

func (r *repository) UpsertOverride(ctx context.Context, override *models.EntitlementOverride) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scope_type"}, {Name: "scope_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"entitlements", "reason", "created_by", "updated_at",
			}),
		}).
		Create(override).Error
}

func (r *repository) DeleteOverride(ctx context.Context, scope types.Scope) error {
	return r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID).
		Delete(&models.EntitlementOverride{}).Error
}
