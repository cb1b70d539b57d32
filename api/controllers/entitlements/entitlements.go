package entitlements

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/api/responses"
	"github.com/mgallardo/edustack-backend/api/validators"
	entsvc "github.com/mgallardo/edustack-backend/internal/entitlements"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// EntitlementService describes the resolver methods used by the HTTP
// controllers.
type EntitlementService interface {
	ResolveUser(ctx context.Context, userID uuid.UUID) (*entsvc.Resolution, error)
	Resolve(ctx context.Context, scope types.Scope) (*entsvc.Resolution, error)
	GetEntitlement(ctx context.Context, userID uuid.UUID, scope types.Scope) (*entsvc.Resolution, error)
	ForceRefresh(ctx context.Context, userID uuid.UUID) (*entsvc.Resolution, error)
	GetOverride(ctx context.Context, scope types.Scope) (*models.EntitlementOverride, error)
	SetOverride(ctx context.Context, input entsvc.SetOverrideInput) (*models.EntitlementOverride, error)
	DeleteOverride(ctx context.Context, scope types.Scope) error
}

type overrideResponse struct {
	Scope        types.Scope              `json:"scope"`
	Entitlements types.EntitlementPayload `json:"entitlements"`
	Reason       *string                  `json:"reason,omitempty"`
	CreatedBy    *string                  `json:"created_by,omitempty"`
	CreatedAt    string                   `json:"created_at"`
	UpdatedAt    string                   `json:"updated_at"`
}

type setOverrideRequest struct {
	Entitlements types.EntitlementPayload `json:"entitlements"`
	Reason       string                   `json:"reason"`
	CreatedBy    *uuid.UUID               `json:"created_by"`
}

func overrideToResponse(override *models.EntitlementOverride) overrideResponse {
	resp := overrideResponse{
		Scope:        types.Scope{Type: override.ScopeType, ID: override.ScopeID},
		Entitlements: override.Entitlements,
		Reason:       override.Reason,
		CreatedAt:    override.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    override.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if override.CreatedBy != nil {
		v := override.CreatedBy.String()
		resp.CreatedBy = &v
	}
	return resp
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userId"))
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user id must be a uuid")
	}
	return userID, nil
}

// ResolveUser returns the user's effective entitlements, served from the
// snapshot cache when it is still fresh.
func ResolveUser(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolution, err := svc.ResolveUser(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolution)
	}
}

// ResolveScope returns the effective entitlements of an arbitrary scope.
// Non-user scopes are read directly, bypassing the snapshot cache.
func ResolveScope(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolution, err := svc.Resolve(ctx, scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolution)
	}
}

// GetForScope returns the entitlements a user holds through one specific
// scope in their hierarchy.
func GetForScope(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolution, err := svc.GetEntitlement(ctx, userID, scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolution)
	}
}

// ForceRefresh recomputes the user's entitlements, discarding any cached
// snapshot.
func ForceRefresh(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolution, err := svc.ForceRefresh(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolution)
	}
}

func AdminGetOverride(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		override, err := svc.GetOverride(ctx, scope)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, overrideToResponse(override))
	}
}

func AdminSetOverride(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload setOverrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		override, err := svc.SetOverride(ctx, entsvc.SetOverrideInput{
			Scope:        scope,
			Entitlements: payload.Entitlements,
			Reason:       validators.SanitizeString(payload.Reason, 500),
			CreatedBy:    payload.CreatedBy,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, overrideToResponse(override))
	}
}

func AdminDeleteOverride(svc EntitlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.DeleteOverride(ctx, scope); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
