package plans

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/api/responses"
	"github.com/mgallardo/edustack-backend/api/validators"
	planssvc "github.com/mgallardo/edustack-backend/internal/plans"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// PlanService describes the plan catalog methods used by the HTTP controllers.
type PlanService interface {
	ListActivePlans(ctx context.Context) ([]models.Plan, error)
	ListPlans(ctx context.Context, params planssvc.ListPlansQuery) ([]models.Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*models.Plan, error)
	GetPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	CreatePlan(ctx context.Context, input planssvc.CreatePlanInput) (*models.Plan, error)
	UpdatePlan(ctx context.Context, id uuid.UUID, input planssvc.UpdatePlanInput) (*models.Plan, error)
	DeactivatePlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type planResponse struct {
	ID           string                   `json:"id"`
	Code         string                   `json:"code"`
	Name         string                   `json:"name"`
	Type         string                   `json:"type"`
	PriceAmount  string                   `json:"price_amount"`
	CurrencyCode string                   `json:"currency_code"`
	Entitlements types.EntitlementPayload `json:"entitlements"`
	IsActive     bool                     `json:"is_active"`
	CreatedAt    string                   `json:"created_at"`
	UpdatedAt    string                   `json:"updated_at"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

func planToResponse(plan *models.Plan) planResponse {
	return planResponse{
		ID:           plan.ID.String(),
		Code:         plan.Code,
		Name:         plan.Name,
		Type:         string(plan.Type),
		PriceAmount:  plan.PriceAmount.StringFixed(2),
		CurrencyCode: plan.CurrencyCode,
		Entitlements: plan.Entitlements,
		IsActive:     plan.IsActive,
		CreatedAt:    plan.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    plan.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func plansToResponse(plans []models.Plan) []planResponse {
	out := make([]planResponse, 0, len(plans))
	for i := range plans {
		out = append(out, planToResponse(&plans[i]))
	}
	return out
}

// CatalogList serves the purchasable plan catalog.
func CatalogList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.ListActivePlans(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(plans)})
	}
}

// CatalogDetail serves a single plan looked up by its code.
func CatalogDetail(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "planCode"))
		if code == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "plan code is required"))
			return
		}

		plan, err := svc.GetPlanByCode(ctx, code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := planToResponse(plan)
		responses.WriteSuccess(w, resp)
	}
}

func AdminList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		query := planssvc.ListPlansQuery{}

		typeParam := strings.TrimSpace(r.URL.Query().Get("type"))
		if typeParam != "" {
			parsed, err := enums.ParsePlanType(typeParam)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			query.Type = &parsed
		}

		isActive, err := validators.ParseQueryBool(r, "is_active")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		query.IsActive = isActive

		plans, err := svc.ListPlans(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(plans)})
	}
}

func AdminCreate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var payload planssvc.CreatePlanInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.CreatePlan(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, planToResponse(plan))
	}
}

func AdminUpdate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID, err := parsePlanID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload planssvc.UpdatePlanInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.UpdatePlan(ctx, planID, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, planToResponse(plan))
	}
}

func AdminDeactivate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID, err := parsePlanID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.DeactivatePlan(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, planToResponse(plan))
	}
}

func parsePlanID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "planId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	planID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id must be a uuid")
	}
	return planID, nil
}
