package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// EntitlementOverride is the admin escape hatch: a manual payload layered on
// top of computed entitlements, keyed uniquely by scope.
type EntitlementOverride struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ScopeType    enums.ScopeType          `gorm:"column:scope_type;type:scope_type;not null;uniqueIndex:uq_entitlement_overrides_scope"`
	ScopeID      uuid.UUID                `gorm:"column:scope_id;type:uuid;not null;uniqueIndex:uq_entitlement_overrides_scope"`
	Entitlements types.EntitlementPayload `gorm:"column:entitlements;type:jsonb;not null"`
	Reason       *string                  `gorm:"column:reason"`
	CreatedBy    *uuid.UUID               `gorm:"column:created_by;type:uuid"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
