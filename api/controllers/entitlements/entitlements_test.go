package entitlements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	entsvc "github.com/mgallardo/edustack-backend/internal/entitlements"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

type stubEntitlementService struct {
	resolvedUser   uuid.UUID
	resolvedScope  types.Scope
	lookupUser     uuid.UUID
	lookupScope    types.Scope
	refreshedUser  uuid.UUID
	overrideInput  *entsvc.SetOverrideInput
	deletedScope   types.Scope
	resolution     *entsvc.Resolution
	override       *models.EntitlementOverride
	getOverrideErr error
}

func (s *stubEntitlementService) ResolveUser(ctx context.Context, userID uuid.UUID) (*entsvc.Resolution, error) {
	s.resolvedUser = userID
	return s.resolution, nil
}

func (s *stubEntitlementService) Resolve(ctx context.Context, scope types.Scope) (*entsvc.Resolution, error) {
	s.resolvedScope = scope
	return s.resolution, nil
}

func (s *stubEntitlementService) GetEntitlement(ctx context.Context, userID uuid.UUID, scope types.Scope) (*entsvc.Resolution, error) {
	s.lookupUser = userID
	s.lookupScope = scope
	return s.resolution, nil
}

func (s *stubEntitlementService) ForceRefresh(ctx context.Context, userID uuid.UUID) (*entsvc.Resolution, error) {
	s.refreshedUser = userID
	return s.resolution, nil
}

func (s *stubEntitlementService) GetOverride(ctx context.Context, scope types.Scope) (*models.EntitlementOverride, error) {
	if s.getOverrideErr != nil {
		return nil, s.getOverrideErr
	}
	return s.override, nil
}

func (s *stubEntitlementService) SetOverride(ctx context.Context, input entsvc.SetOverrideInput) (*models.EntitlementOverride, error) {
	s.overrideInput = &input
	return s.override, nil
}

func (s *stubEntitlementService) DeleteOverride(ctx context.Context, scope types.Scope) error {
	s.deletedScope = scope
	return nil
}

func testResolution(userID uuid.UUID) *entsvc.Resolution {
	return &entsvc.Resolution{
		Scope:    types.UserScope(userID),
		Source:   enums.EntitlementSourceOrg,
		PlanType: enums.PlanTypeInstitution,
		Entitlements: types.EntitlementPayload{
			Limits:   map[string]int64{"ai_requests_per_day": 1000},
			Features: map[string]bool{"advanced_analytics": true},
		},
		ExpiresAt: time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC),
		FromCache: true,
	}
}

func withUserID(req *http.Request, userID string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("userId", userID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestResolveUserReturnsResolution(t *testing.T) {
	userID := uuid.New()
	service := &stubEntitlementService{resolution: testResolution(userID)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/entitlements", nil)
	resp := httptest.NewRecorder()
	ResolveUser(service, nil)(resp, withUserID(req, userID.String()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.resolvedUser != userID {
		t.Fatalf("expected resolve for %s, got %s", userID, service.resolvedUser)
	}

	var envelope struct {
		Data entsvc.Resolution `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Source != enums.EntitlementSourceOrg {
		t.Fatalf("expected org source, got %s", envelope.Data.Source)
	}
	if !envelope.Data.FromCache {
		t.Fatal("expected from_cache flag")
	}
}

func TestResolveUserRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/abc/entitlements", nil)
	resp := httptest.NewRecorder()
	ResolveUser(&stubEntitlementService{}, nil)(resp, withUserID(req, "abc"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed user id, got %d", resp.Code)
	}
}

func TestGetForScopePassesBothKeys(t *testing.T) {
	userID := uuid.New()
	familyID := uuid.New()
	service := &stubEntitlementService{resolution: testResolution(userID)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/entitlements/scope?scope_type=family&scope_id="+familyID.String(), nil)
	resp := httptest.NewRecorder()
	GetForScope(service, nil)(resp, withUserID(req, userID.String()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.lookupUser != userID {
		t.Fatalf("expected lookup for user %s, got %s", userID, service.lookupUser)
	}
	if service.lookupScope.Type != enums.ScopeTypeFamily || service.lookupScope.ID != familyID {
		t.Fatalf("unexpected lookup scope %s", service.lookupScope)
	}
}

func TestForceRefreshPassesUser(t *testing.T) {
	userID := uuid.New()
	service := &stubEntitlementService{resolution: testResolution(userID)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/"+userID.String()+"/entitlements/refresh", nil)
	resp := httptest.NewRecorder()
	ForceRefresh(service, nil)(resp, withUserID(req, userID.String()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.refreshedUser != userID {
		t.Fatalf("expected refresh for %s, got %s", userID, service.refreshedUser)
	}
}

func TestAdminGetOverrideNotFound(t *testing.T) {
	service := &stubEntitlementService{
		getOverrideErr: pkgerrors.New(pkgerrors.CodeNotFound, "no override for scope"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/overrides?scope_type=user&scope_id="+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	AdminGetOverride(service, nil)(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAdminSetOverrideParsesPayload(t *testing.T) {
	scopeID := uuid.New()
	service := &stubEntitlementService{
		override: &models.EntitlementOverride{
			ScopeType: enums.ScopeTypeInstitution,
			ScopeID:   scopeID,
			Entitlements: types.EntitlementPayload{
				Limits: map[string]int64{"ai_requests_per_day": -1},
			},
		},
	}
	payload := `{
		"entitlements":{"limits":{"ai_requests_per_day":-1},"features":{}},
		"reason":"pilot program"
	}`

	req := httptest.NewRequest(http.MethodPut, "/api/admin/v1/overrides?scope_type=institution&scope_id="+scopeID.String(), strings.NewReader(payload))
	resp := httptest.NewRecorder()
	AdminSetOverride(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.overrideInput == nil {
		t.Fatal("expected override to reach the service")
	}
	if service.overrideInput.Scope.ID != scopeID {
		t.Fatalf("expected scope id %s, got %s", scopeID, service.overrideInput.Scope.ID)
	}
	if service.overrideInput.Reason != "pilot program" {
		t.Fatalf("unexpected reason %q", service.overrideInput.Reason)
	}
}

func TestAdminDeleteOverridePassesScope(t *testing.T) {
	scopeID := uuid.New()
	service := &stubEntitlementService{}

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/v1/overrides?scope_type=family&scope_id="+scopeID.String(), nil)
	resp := httptest.NewRecorder()
	AdminDeleteOverride(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.deletedScope.Type != enums.ScopeTypeFamily || service.deletedScope.ID != scopeID {
		t.Fatalf("unexpected deleted scope %s", service.deletedScope)
	}
}
