package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// EntitlementSnapshot is a cached materialization of resolved entitlements.
// One live row per (user, scope) with upsert semantics; expires_at bounds
// staleness and an expired row must be recomputed before being trusted.
type EntitlementSnapshot struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_entitlement_snapshots_scope"`
	ScopeType    enums.ScopeType          `gorm:"column:scope_type;type:scope_type;not null;uniqueIndex:uq_entitlement_snapshots_scope"`
	ScopeID      uuid.UUID                `gorm:"column:scope_id;type:uuid;not null;uniqueIndex:uq_entitlement_snapshots_scope"`
	Source       enums.EntitlementSource  `gorm:"column:source;type:entitlement_source;not null"`
	PlanType     enums.PlanType           `gorm:"column:plan_type;type:plan_type;not null"`
	Entitlements types.EntitlementPayload `gorm:"column:entitlements;type:jsonb;not null"`
	ExpiresAt    time.Time                `gorm:"column:expires_at;not null;index"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the snapshot can no longer be trusted at now.
func (s *EntitlementSnapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
