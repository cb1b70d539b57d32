package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// Subscription links a scope to a plan. Rows are never deleted; plan changes
// cancel the old row and create a new one so the table doubles as an audit
// trail.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ScopeType          enums.ScopeType          `gorm:"column:scope_type;type:scope_type;not null;index:idx_subscriptions_scope"`
	ScopeID            uuid.UUID                `gorm:"column:scope_id;type:uuid;not null;index:idx_subscriptions_scope"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd  bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt         *time.Time               `gorm:"column:canceled_at"`
	Metadata           json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	Plan *Plan `gorm:"foreignKey:PlanID"`
}

// Scope returns the subscription's scope identity.
func (s *Subscription) Scope() types.Scope {
	return types.Scope{Type: s.ScopeType, ID: s.ScopeID}
}
