package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/pagination"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// ServiceParams groups dependencies for the usage ledger service.
type ServiceParams struct {
	Repo        Repository
	Environment enums.Environment
	Now         func() time.Time
}

// Service records and aggregates usage events. The environment every event
// is stamped with comes from construction, so tests and staging traffic
// never leak into production counters.
type Service struct {
	repo Repository
	env  enums.Environment
	now  func() time.Time
}

// NewService builds a usage ledger service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if !params.Environment.IsValid() {
		return nil, fmt.Errorf("invalid environment %q", params.Environment)
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: params.Repo, env: params.Environment, now: now}, nil
}

// RecordInput captures a single usage increment.
type RecordInput struct {
	Scope         types.Scope      `json:"scope"`
	Metric        string           `json:"metric"`
	Quantity      int64            `json:"quantity"`
	OccurredAt    *time.Time       `json:"occurred_at"`
	ApproxCostUSD *decimal.Decimal `json:"approx_cost_usd"`
	ProviderCode  *string          `json:"provider_code"`
}

// Record appends a usage event to the ledger.
func (s *Service) Record(ctx context.Context, input RecordInput) (*models.UsageEvent, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	metric := strings.TrimSpace(input.Metric)
	if metric == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "metric is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.ApproxCostUSD != nil && input.ApproxCostUSD.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "approx_cost_usd must not be negative")
	}

	occurredAt := s.now()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}

	event := &models.UsageEvent{
		ScopeType:     input.Scope.Type,
		ScopeID:       input.Scope.ID,
		Metric:        metric,
		Quantity:      input.Quantity,
		Environment:   s.env,
		OccurredAt:    occurredAt,
		ApproxCostUSD: input.ApproxCostUSD,
		ProviderCode:  input.ProviderCode,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// SumForScope totals a metric for a scope since the given time. Nil since
// means all-time.
func (s *Service) SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	metric = strings.TrimSpace(metric)
	if metric == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "metric is required")
	}
	return s.repo.SumForScope(ctx, scope, metric, since)
}

// ListEvents returns a cursor-paginated page of a scope's events, newest
// first.
func (s *Service) ListEvents(ctx context.Context, params ListEventsQuery) ([]models.UsageEvent, *pagination.Cursor, error) {
	if err := params.Scope.Validate(); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	return s.repo.ListEvents(ctx, params)
}
