package enforcement

import (
	"context"
	"net/http"
	"strings"

	"github.com/mgallardo/edustack-backend/api/responses"
	"github.com/mgallardo/edustack-backend/api/validators"
	enfsvc "github.com/mgallardo/edustack-backend/internal/enforcement"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// EnforcementService describes the gate methods used by the HTTP controllers.
type EnforcementService interface {
	RequireFeature(ctx context.Context, scope types.Scope, feature string) error
	EnforceLimit(ctx context.Context, scope types.Scope, metric string, quantity int64) error
	WouldExceedLimit(ctx context.Context, scope types.Scope, metric string, quantity int64) (*enfsvc.LimitProbe, error)
	EnforceHierarchy(ctx context.Context, scopes []types.Scope, metric string, quantity int64) (types.Scope, error)
	RequireFeatureHierarchy(ctx context.Context, scopes []types.Scope, feature string) (types.Scope, error)
}

type limitCheckRequest struct {
	Scope    types.Scope   `json:"scope"`
	Scopes   []types.Scope `json:"scopes"`
	Metric   string        `json:"metric" validate:"required"`
	Quantity int64         `json:"quantity" validate:"gt=0"`
}

type featureCheckRequest struct {
	Scope   types.Scope   `json:"scope"`
	Scopes  []types.Scope `json:"scopes"`
	Feature string        `json:"feature" validate:"required"`
}

type decisionResponse struct {
	Allowed      bool         `json:"allowed"`
	GrantedScope *types.Scope `json:"granted_scope,omitempty"`
}

// CheckLimit reports whether the requested quantity would push the scope
// over its limit, without consuming anything.
func CheckLimit(svc EnforcementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "enforcement service unavailable"))
			return
		}

		var payload limitCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if len(payload.Scopes) > 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit probes take a single scope"))
			return
		}

		probe, err := svc.WouldExceedLimit(ctx, payload.Scope, strings.TrimSpace(payload.Metric), payload.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, probe)
	}
}

// EnforceLimit denies the request when the quantity would exceed the
// effective limit. A hierarchy of scopes passes when any one of them does.
func EnforceLimit(svc EnforcementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "enforcement service unavailable"))
			return
		}

		var payload limitCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		metric := strings.TrimSpace(payload.Metric)
		granted := payload.Scope
		var err error
		if len(payload.Scopes) > 0 {
			granted, err = svc.EnforceHierarchy(ctx, payload.Scopes, metric, payload.Quantity)
		} else {
			err = svc.EnforceLimit(ctx, payload.Scope, metric, payload.Quantity)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, decisionResponse{Allowed: true, GrantedScope: &granted})
	}
}

// RequireFeature denies the request when no supplied scope enables the
// feature.
func RequireFeature(svc EnforcementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "enforcement service unavailable"))
			return
		}

		var payload featureCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		feature := strings.TrimSpace(payload.Feature)
		granted := payload.Scope
		var err error
		if len(payload.Scopes) > 0 {
			granted, err = svc.RequireFeatureHierarchy(ctx, payload.Scopes, feature)
		} else {
			err = svc.RequireFeature(ctx, payload.Scope, feature)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, decisionResponse{Allowed: true, GrantedScope: &granted})
	}
}
