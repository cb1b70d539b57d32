package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgallardo/edustack-backend/pkg/enums"
)

// UsageEvent records one metered consumption event. Rows are append-only and
// only removed by the retention cron job.
type UsageEvent struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ScopeType     enums.ScopeType   `gorm:"column:scope_type;type:scope_type;not null;index:idx_usage_events_scope_metric"`
	ScopeID       uuid.UUID         `gorm:"column:scope_id;type:uuid;not null;index:idx_usage_events_scope_metric"`
	Metric        string            `gorm:"column:metric;not null;index:idx_usage_events_scope_metric"`
	Quantity      int64             `gorm:"column:quantity;not null"`
	Environment   enums.Environment `gorm:"column:environment;type:environment;not null"`
	OccurredAt    time.Time         `gorm:"column:occurred_at;not null;index"`
	ApproxCostUSD *decimal.Decimal  `gorm:"column:approx_cost_usd;type:numeric(12,6)"`
	ProviderCode  *string           `gorm:"column:provider_code"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}
