package subscriptions

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

	subssvc "github.com/mgallardo/edustack-backend/internal/subscriptions"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

type stubSubscriptionService struct {
	bootstrapScope types.Scope
	created        bool
	activeScope    types.Scope
	activeErr      error
	assignInput    subssvc.AssignPlanInput
	canceledID     uuid.UUID
	cancelAtEnd    bool
	cancelReason   string
	sub            *models.Subscription
}

func (s *stubSubscriptionService) CreateInitialSubscription(ctx context.Context, scope types.Scope) (*models.Subscription, bool, error) {
	s.bootstrapScope = scope
	return s.sub, s.created, nil
}

func (s *stubSubscriptionService) GetActiveSubscription(ctx context.Context, scope types.Scope) (*models.Subscription, error) {
	s.activeScope = scope
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	return s.sub, nil
}

func (s *stubSubscriptionService) ListSubscriptions(ctx context.Context, scope types.Scope) ([]models.Subscription, error) {
	if s.sub == nil {
		return nil, nil
	}
	return []models.Subscription{*s.sub}, nil
}

func (s *stubSubscriptionService) AssignPlan(ctx context.Context, input subssvc.AssignPlanInput) (*subssvc.PlanChange, error) {
	s.assignInput = input
	return &subssvc.PlanChange{
		After:        subssvc.PlanSummary{PlanID: s.sub.PlanID, Code: "premium", Type: enums.PlanTypeIndividual},
		Subscription: s.sub,
	}, nil
}

func (s *stubSubscriptionService) CancelSubscription(ctx context.Context, id uuid.UUID, cancelAtPeriodEnd bool, reason string) (*models.Subscription, error) {
	s.canceledID = id
	s.cancelAtEnd = cancelAtPeriodEnd
	s.cancelReason = reason
	return s.sub, nil
}

func testSubscription() *models.Subscription {
	return &models.Subscription{
		ID:                 uuid.New(),
		ScopeType:          enums.ScopeTypeUser,
		ScopeID:            uuid.New(),
		PlanID:             uuid.New(),
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBootstrapReturns201WhenCreated(t *testing.T) {
	service := &stubSubscriptionService{sub: testSubscription(), created: true}
	scopeID := uuid.New()
	payload := `{"scope":{"scope_type":"user","scope_id":"` + scopeID.String() + `"}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/bootstrap", strings.NewReader(payload))
	resp := httptest.NewRecorder()
	Bootstrap(service, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.bootstrapScope.ID != scopeID {
		t.Fatalf("expected scope id %s, got %s", scopeID, service.bootstrapScope.ID)
	}

	var envelope struct {
		Data bootstrapResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Created {
		t.Fatal("expected created flag in response")
	}
}

func TestBootstrapReturns200WhenAlreadyPresent(t *testing.T) {
	service := &stubSubscriptionService{sub: testSubscription(), created: false}
	payload := `{"scope":{"scope_type":"user","scope_id":"` + uuid.NewString() + `"}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/bootstrap", strings.NewReader(payload))
	resp := httptest.NewRecorder()
	Bootstrap(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for idempotent bootstrap, got %d", resp.Code)
	}
}

func TestActiveRequiresScopeParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/active", nil)
	resp := httptest.NewRecorder()
	Active(&stubSubscriptionService{}, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without scope params, got %d", resp.Code)
	}
}

func TestActiveSurfacesMissingSubscription(t *testing.T) {
	service := &stubSubscriptionService{
		activeErr: pkgerrors.New(pkgerrors.CodeSubscriptionMissing, "scope has no live subscription"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/active?scope_type=family&scope_id="+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	Active(service, nil)(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing live subscription, got %d", resp.Code)
	}
	if service.activeScope.Type != enums.ScopeTypeFamily {
		t.Fatalf("expected family scope, got %s", service.activeScope.Type)
	}
}

func TestAssignPlanParsesPayload(t *testing.T) {
	service := &stubSubscriptionService{sub: testSubscription()}
	scopeID := uuid.New()
	payload := `{
		"scope":{"scope_type":"institution","scope_id":"` + scopeID.String() + `"},
		"plan_code":"campus",
		"actor":"admin@district.example",
		"reason":"annual renewal"
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/assign", strings.NewReader(payload))
	resp := httptest.NewRecorder()
	AssignPlan(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.assignInput.PlanCode != "campus" {
		t.Fatalf("unexpected plan code %q", service.assignInput.PlanCode)
	}
	if service.assignInput.Scope.Type != enums.ScopeTypeInstitution || service.assignInput.Scope.ID != scopeID {
		t.Fatalf("unexpected scope %s", service.assignInput.Scope)
	}
}

func TestAssignPlanRequiresPlanCode(t *testing.T) {
	payload := `{"scope":{"scope_type":"user","scope_id":"` + uuid.NewString() + `"}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/assign", strings.NewReader(payload))
	resp := httptest.NewRecorder()
	AssignPlan(&stubSubscriptionService{sub: testSubscription()}, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plan_code, got %d", resp.Code)
	}
}

func TestCancelParsesIDAndFlags(t *testing.T) {
	service := &stubSubscriptionService{sub: testSubscription()}
	subID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/"+subID.String()+"/cancel", strings.NewReader(`{"cancel_at_period_end":true,"reason":"school year ended"}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("subscriptionId", subID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	Cancel(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.canceledID != subID {
		t.Fatalf("expected cancel for %s, got %s", subID, service.canceledID)
	}
	if !service.cancelAtEnd {
		t.Fatal("expected cancel_at_period_end to reach the service")
	}
	if service.cancelReason != "school year ended" {
		t.Fatalf("unexpected reason %q", service.cancelReason)
	}
}
