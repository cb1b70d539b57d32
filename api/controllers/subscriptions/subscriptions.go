package subscriptions

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/api/responses"
	"github.com/mgallardo/edustack-backend/api/validators"
	subssvc "github.com/mgallardo/edustack-backend/internal/subscriptions"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// SubscriptionService describes the subscription methods used by the HTTP
// controllers.
type SubscriptionService interface {
	CreateInitialSubscription(ctx context.Context, scope types.Scope) (*models.Subscription, bool, error)
	GetActiveSubscription(ctx context.Context, scope types.Scope) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, scope types.Scope) ([]models.Subscription, error)
	AssignPlan(ctx context.Context, input subssvc.AssignPlanInput) (*subssvc.PlanChange, error)
	CancelSubscription(ctx context.Context, id uuid.UUID, cancelAtPeriodEnd bool, reason string) (*models.Subscription, error)
}

type subscriptionResponse struct {
	ID                 string      `json:"id"`
	Scope              types.Scope `json:"scope"`
	PlanID             string      `json:"plan_id"`
	PlanCode           string      `json:"plan_code,omitempty"`
	Status             string      `json:"status"`
	CurrentPeriodStart string      `json:"current_period_start"`
	CurrentPeriodEnd   *string     `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool        `json:"cancel_at_period_end"`
	CanceledAt         *string     `json:"canceled_at,omitempty"`
	CreatedAt          string      `json:"created_at"`
}

type subscriptionListResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
}

type bootstrapRequest struct {
	Scope types.Scope `json:"scope"`
}

type bootstrapResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Created      bool                 `json:"created"`
}

type assignPlanRequest struct {
	Scope    types.Scope `json:"scope"`
	PlanCode string      `json:"plan_code" validate:"required"`
	Actor    string      `json:"actor"`
	Reason   string      `json:"reason"`
}

type planChangeResponse struct {
	Before       *subssvc.PlanSummary `json:"before,omitempty"`
	After        subssvc.PlanSummary  `json:"after"`
	Subscription subscriptionResponse `json:"subscription"`
}

type cancelRequest struct {
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Reason            string `json:"reason"`
}

func subscriptionToResponse(sub *models.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                 sub.ID.String(),
		Scope:              sub.Scope(),
		PlanID:             sub.PlanID.String(),
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart.UTC().Format(time.RFC3339),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CreatedAt:          sub.CreatedAt.UTC().Format(time.RFC3339),
	}
	if sub.Plan != nil {
		resp.PlanCode = sub.Plan.Code
	}
	if sub.CurrentPeriodEnd != nil {
		v := sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)
		resp.CurrentPeriodEnd = &v
	}
	if sub.CanceledAt != nil {
		v := sub.CanceledAt.UTC().Format(time.RFC3339)
		resp.CanceledAt = &v
	}
	return resp
}

// Bootstrap guarantees a scope holds a live subscription, seeding the free
// plan when none exists. The call is idempotent.
func Bootstrap(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload bootstrapRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, created, err := svc.CreateInitialSubscription(ctx, payload.Scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, bootstrapResponse{
			Subscription: subscriptionToResponse(sub),
			Created:      created,
		})
	}
}

// Active returns the scope's single live subscription.
func Active(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.GetActiveSubscription(ctx, scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, subscriptionToResponse(sub))
	}
}

// List returns every subscription row a scope has held, newest first.
func List(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		subs, err := svc.ListSubscriptions(ctx, scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]subscriptionResponse, 0, len(subs))
		for i := range subs {
			out = append(out, subscriptionToResponse(&subs[i]))
		}
		responses.WriteSuccess(w, subscriptionListResponse{Subscriptions: out})
	}
}

// AssignPlan switches a scope onto the named plan, replacing its live
// subscription atomically.
func AssignPlan(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload assignPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		change, err := svc.AssignPlan(ctx, subssvc.AssignPlanInput{
			Scope:    payload.Scope,
			PlanCode: payload.PlanCode,
			Actor:    validators.SanitizeString(payload.Actor, 120),
			Reason:   validators.SanitizeString(payload.Reason, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, planChangeResponse{
			Before:       change.Before,
			After:        change.After,
			Subscription: subscriptionToResponse(change.Subscription),
		})
	}
}

// Cancel cancels a subscription either immediately or at period end.
func Cancel(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "subscriptionId"))
		subID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "subscription id must be a uuid"))
			return
		}

		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.CancelSubscription(ctx, subID, payload.CancelAtPeriodEnd, validators.SanitizeString(payload.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, subscriptionToResponse(sub))
	}
}
