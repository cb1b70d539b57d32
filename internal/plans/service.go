package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgallardo/edustack-backend/pkg/db"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// FreePlanCode is the catalog code of the built-in free plan.
const FreePlanCode = "free"

// ServiceParams groups dependencies for the plan catalog service.
type ServiceParams struct {
	Repo Repository
}

// Service orchestrates plan catalog operations.
type Service struct {
	repo Repository
}

// NewService builds a plan catalog service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// CreatePlanInput captures the data required to publish a plan.
type CreatePlanInput struct {
	Code         string                   `json:"code"`
	Name         string                   `json:"name"`
	Type         enums.PlanType           `json:"type"`
	PriceAmount  decimal.Decimal          `json:"price_amount"`
	CurrencyCode string                   `json:"currency_code"`
	Entitlements types.EntitlementPayload `json:"entitlements"`
}

// UpdatePlanInput carries the mutable fields of an existing plan.
type UpdatePlanInput struct {
	Name         *string                   `json:"name"`
	PriceAmount  *decimal.Decimal          `json:"price_amount"`
	CurrencyCode *string                   `json:"currency_code"`
	Entitlements *types.EntitlementPayload `json:"entitlements"`
}

// ListActivePlans returns the purchasable catalog ordered by price ascending.
func (s *Service) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	return s.repo.ListActive(ctx)
}

// ListPlans returns plans filtered by the provided query, inactive ones included.
func (s *Service) ListPlans(ctx context.Context, params ListPlansQuery) ([]models.Plan, error) {
	return s.repo.List(ctx, params)
}

// GetPlanByCode resolves a single plan by its catalog code.
func (s *Service) GetPlanByCode(ctx context.Context, code string) (*models.Plan, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan code is required")
	}
	plan, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q not found", code))
	}
	return plan, nil
}

// GetPlanByID resolves a single plan by id.
func (s *Service) GetPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

// CreatePlan publishes a new plan. Plan codes are unique across the catalog.
func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	code := strings.TrimSpace(strings.ToLower(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan code is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid plan type %q", input.Type))
	}
	if input.PriceAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_amount must not be negative")
	}
	if err := validatePayload(input.Entitlements); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.CurrencyCode))
	if currency == "" {
		currency = "USD"
	}

	plan := &models.Plan{
		Code:         code,
		Name:         name,
		Type:         input.Type,
		PriceAmount:  input.PriceAmount,
		CurrencyCode: currency,
		Entitlements: input.Entitlements.Clone(),
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, plan); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("plan %q already exists", code))
		}
		return nil, err
	}
	return plan, nil
}

// UpdatePlan applies partial updates to an existing plan. The code and type
// are immutable once published.
func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*models.Plan, error) {
	plan, err := s.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name must not be empty")
		}
		plan.Name = name
	}
	if input.PriceAmount != nil {
		if input.PriceAmount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_amount must not be negative")
		}
		plan.PriceAmount = *input.PriceAmount
	}
	if input.CurrencyCode != nil {
		currency := strings.ToUpper(strings.TrimSpace(*input.CurrencyCode))
		if currency == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency_code must not be empty")
		}
		plan.CurrencyCode = currency
	}
	if input.Entitlements != nil {
		if err := validatePayload(*input.Entitlements); err != nil {
			return nil, err
		}
		plan.Entitlements = input.Entitlements.Clone()
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// DeactivatePlan retires a plan from the purchasable catalog. Existing
// subscriptions keep resolving against it.
func (s *Service) DeactivatePlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Code == FreePlanCode {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "the free plan cannot be deactivated")
	}
	if !plan.IsActive {
		return plan, nil
	}

	plan.IsActive = false
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func validatePayload(payload types.EntitlementPayload) error {
	for metric, limit := range payload.Limits {
		if strings.TrimSpace(metric) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "limit metric keys must not be empty")
		}
		if limit < types.UnlimitedLimit {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("limit %q must be -1 (unlimited) or non-negative", metric))
		}
	}
	for feature := range payload.Features {
		if strings.TrimSpace(feature) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "feature keys must not be empty")
		}
	}
	return nil
}
