package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// Plan is a named subscription tier with its entitlement payload. Plans are
// soft-deleted via is_active so existing subscriptions keep a valid
// reference.
type Plan struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string                   `gorm:"column:code;not null;uniqueIndex"`
	Name         string                   `gorm:"column:name;not null"`
	Type         enums.PlanType           `gorm:"column:type;type:plan_type;not null"`
	PriceAmount  decimal.Decimal          `gorm:"column:price_amount;type:numeric(12,2);not null"`
	CurrencyCode string                   `gorm:"column:currency_code;not null;default:'USD'"`
	Entitlements types.EntitlementPayload `gorm:"column:entitlements;type:jsonb;not null"`
	IsActive     bool                     `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
