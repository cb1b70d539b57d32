package subscriptions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mgallardo/edustack-backend/internal/plans"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

type fakeRepo struct {
	createFn      func(ctx context.Context, sub *models.Subscription) error
	updateFn      func(ctx context.Context, sub *models.Subscription) error
	findByIDFn    func(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	findLiveFn    func(ctx context.Context, scope types.Scope) (*models.Subscription, error)
	listByScopeFn func(ctx context.Context, scope types.Scope) ([]models.Subscription, error)
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if f.createFn != nil {
		return f.createFn(ctx, sub)
	}
	return nil
}

func (f *fakeRepo) Update(ctx context.Context, sub *models.Subscription) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, sub)
	}
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeRepo) FindLiveByScope(ctx context.Context, scope types.Scope) (*models.Subscription, error) {
	if f.findLiveFn != nil {
		return f.findLiveFn(ctx, scope)
	}
	return nil, nil
}

func (f *fakeRepo) ListByScope(ctx context.Context, scope types.Scope) ([]models.Subscription, error) {
	if f.listByScopeFn != nil {
		return f.listByScopeFn(ctx, scope)
	}
	return nil, nil
}

type fakePlanRepo struct {
	plansByCode map[string]*models.Plan
}

func (f *fakePlanRepo) WithTx(tx *gorm.DB) plans.Repository                  { return f }
func (f *fakePlanRepo) Create(ctx context.Context, plan *models.Plan) error  { return nil }
func (f *fakePlanRepo) Update(ctx context.Context, plan *models.Plan) error  { return nil }
func (f *fakePlanRepo) ListActive(ctx context.Context) ([]models.Plan, error) { return nil, nil }
func (f *fakePlanRepo) List(ctx context.Context, params plans.ListPlansQuery) ([]models.Plan, error) {
	return nil, nil
}
func (f *fakePlanRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	for _, p := range f.plansByCode {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}
func (f *fakePlanRepo) FindByCode(ctx context.Context, code string) (*models.Plan, error) {
	return f.plansByCode[code], nil
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

var testClock = func() time.Time {
	return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
}

func freePlan() *models.Plan {
	return &models.Plan{ID: uuid.New(), Code: plans.FreePlanCode, Name: "Free", Type: enums.PlanTypeFree, IsActive: true}
}

func paidPlan(code string, planType enums.PlanType) *models.Plan {
	return &models.Plan{ID: uuid.New(), Code: code, Name: code, Type: planType, IsActive: true}
}

func newTestService(t *testing.T, repo Repository, planRepo plans.Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		PlanRepo:          planRepo,
		TransactionRunner: &fakeTxRunner{},
		Now:               testClock,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_CreateInitialSubscription(t *testing.T) {
	free := freePlan()
	repo := &fakeRepo{}
	planRepo := &fakePlanRepo{plansByCode: map[string]*models.Plan{plans.FreePlanCode: free}}
	svc := newTestService(t, repo, planRepo)

	var created *models.Subscription
	repo.createFn = func(ctx context.Context, sub *models.Subscription) error {
		created = sub
		return nil
	}

	scope := types.UserScope(uuid.New())
	sub, wasCreated, err := svc.CreateInitialSubscription(context.Background(), scope)
	if err != nil {
		t.Fatalf("CreateInitialSubscription error: %v", err)
	}
	if !wasCreated || created == nil {
		t.Fatal("expected a subscription to be created")
	}
	if sub.PlanID != free.ID {
		t.Fatalf("expected free plan, got %s", sub.PlanID)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", sub.Status)
	}
	if sub.CurrentPeriodEnd != nil {
		t.Fatal("free subscriptions must not carry a period end")
	}
}

func TestService_CreateInitialSubscriptionIdempotent(t *testing.T) {
	existing := &models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive}
	repo := &fakeRepo{
		findLiveFn: func(ctx context.Context, scope types.Scope) (*models.Subscription, error) {
			return existing, nil
		},
		createFn: func(ctx context.Context, sub *models.Subscription) error {
			t.Fatal("create must not be called when a live subscription exists")
			return nil
		},
	}
	svc := newTestService(t, repo, &fakePlanRepo{plansByCode: map[string]*models.Plan{}})

	sub, wasCreated, err := svc.CreateInitialSubscription(context.Background(), types.UserScope(uuid.New()))
	if err != nil {
		t.Fatalf("CreateInitialSubscription error: %v", err)
	}
	if wasCreated {
		t.Fatal("expected idempotent no-op")
	}
	if sub != existing {
		t.Fatal("expected the existing subscription back")
	}
}

func TestService_GetActiveSubscriptionMissing(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, &fakePlanRepo{plansByCode: map[string]*models.Plan{}})

	_, err := svc.GetActiveSubscription(context.Background(), types.UserScope(uuid.New()))
	if !pkgerrors.HasCode(err, pkgerrors.CodeSubscriptionMissing) {
		t.Fatalf("expected subscription missing error, got %v", err)
	}
}

func TestService_HasActiveSubscription(t *testing.T) {
	scope := types.FamilyScope(uuid.New())
	repo := &fakeRepo{
		findLiveFn: func(ctx context.Context, s types.Scope) (*models.Subscription, error) {
			if s == scope {
				return &models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(t, repo, &fakePlanRepo{plansByCode: map[string]*models.Plan{}})

	has, err := svc.HasActiveSubscription(context.Background(), scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !has {
		t.Fatal("expected live subscription to be reported")
	}

	has, err = svc.HasActiveSubscription(context.Background(), types.FamilyScope(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Fatal("expected no live subscription for other scope")
	}
}

func TestService_AssignPlanReplacesLiveSubscription(t *testing.T) {
	free := freePlan()
	family := paidPlan("family-plus", enums.PlanTypeFamily)
	scope := types.FamilyScope(uuid.New())

	live := &models.Subscription{
		ID:        uuid.New(),
		ScopeType: scope.Type,
		ScopeID:   scope.ID,
		PlanID:    free.ID,
		Status:    enums.SubscriptionStatusActive,
		Plan:      free,
	}

	var updated, created *models.Subscription
	repo := &fakeRepo{
		findLiveFn: func(ctx context.Context, s types.Scope) (*models.Subscription, error) {
			return live, nil
		},
		updateFn: func(ctx context.Context, sub *models.Subscription) error {
			updated = sub
			return nil
		},
		createFn: func(ctx context.Context, sub *models.Subscription) error {
			created = sub
			return nil
		},
	}
	planRepo := &fakePlanRepo{plansByCode: map[string]*models.Plan{
		plans.FreePlanCode: free,
		"family-plus":      family,
	}}
	svc := newTestService(t, repo, planRepo)

	change, err := svc.AssignPlan(context.Background(), AssignPlanInput{
		Scope:    scope,
		PlanCode: "family-plus",
		Actor:    "admin@school.test",
		Reason:   "upgrade",
	})
	if err != nil {
		t.Fatalf("AssignPlan error: %v", err)
	}

	if updated == nil || updated.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected the old subscription to be canceled, got %+v", updated)
	}
	if updated.CanceledAt == nil || !updated.CanceledAt.Equal(testClock()) {
		t.Fatalf("canceled_at should use the injected clock, got %v", updated.CanceledAt)
	}
	if created == nil || created.PlanID != family.ID {
		t.Fatalf("expected a new subscription on the target plan, got %+v", created)
	}
	if created.CurrentPeriodEnd == nil {
		t.Fatal("paid subscriptions carry a period end")
	}

	if change.Before == nil || change.Before.Code != plans.FreePlanCode {
		t.Fatalf("unexpected before summary: %+v", change.Before)
	}
	if change.After.Code != "family-plus" {
		t.Fatalf("unexpected after summary: %+v", change.After)
	}

	var meta map[string]string
	if err := json.Unmarshal(created.Metadata, &meta); err != nil {
		t.Fatalf("metadata should be valid json: %v", err)
	}
	if meta["changed_by"] != "admin@school.test" || meta["previous_plan"] != plans.FreePlanCode {
		t.Fatalf("unexpected change metadata: %v", meta)
	}
}

func TestService_AssignPlanSamePlanNoOp(t *testing.T) {
	family := paidPlan("family-plus", enums.PlanTypeFamily)
	scope := types.FamilyScope(uuid.New())
	live := &models.Subscription{
		ID: uuid.New(), ScopeType: scope.Type, ScopeID: scope.ID,
		PlanID: family.ID, Status: enums.SubscriptionStatusActive, Plan: family,
	}

	repo := &fakeRepo{
		findLiveFn: func(ctx context.Context, s types.Scope) (*models.Subscription, error) {
			return live, nil
		},
		createFn: func(ctx context.Context, sub *models.Subscription) error {
			t.Fatal("no new subscription expected on same-plan assignment")
			return nil
		},
		updateFn: func(ctx context.Context, sub *models.Subscription) error {
			t.Fatal("no cancellation expected on same-plan assignment")
			return nil
		},
	}
	planRepo := &fakePlanRepo{plansByCode: map[string]*models.Plan{"family-plus": family}}
	svc := newTestService(t, repo, planRepo)

	change, err := svc.AssignPlan(context.Background(), AssignPlanInput{Scope: scope, PlanCode: "family-plus"})
	if err != nil {
		t.Fatalf("AssignPlan error: %v", err)
	}
	if change.Subscription != live {
		t.Fatal("expected the live subscription back unchanged")
	}
}

func TestService_AssignPlanUnknownPlan(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePlanRepo{plansByCode: map[string]*models.Plan{}})

	_, err := svc.AssignPlan(context.Background(), AssignPlanInput{
		Scope:    types.UserScope(uuid.New()),
		PlanCode: "missing",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_CancelSubscriptionAtPeriodEnd(t *testing.T) {
	family := paidPlan("family-plus", enums.PlanTypeFamily)
	sub := &models.Subscription{
		ID: uuid.New(), Status: enums.SubscriptionStatusActive, PlanID: family.ID, Plan: family,
	}

	var updated *models.Subscription
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return sub, nil
		},
		updateFn: func(ctx context.Context, s *models.Subscription) error {
			updated = s
			return nil
		},
		createFn: func(ctx context.Context, s *models.Subscription) error {
			t.Fatal("period-end cancel must not create a replacement")
			return nil
		},
	}
	svc := newTestService(t, repo, &fakePlanRepo{plansByCode: map[string]*models.Plan{}})

	got, err := svc.CancelSubscription(context.Background(), sub.ID, true, "downgrade later")
	if err != nil {
		t.Fatalf("CancelSubscription error: %v", err)
	}
	if !got.CancelAtPeriodEnd {
		t.Fatal("expected cancel_at_period_end to be set")
	}
	if updated == nil || updated.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status must stay live until period end, got %+v", updated)
	}
}

func TestService_CancelSubscriptionImmediateCreatesFreeReplacement(t *testing.T) {
	free := freePlan()
	family := paidPlan("family-plus", enums.PlanTypeFamily)
	scope := types.FamilyScope(uuid.New())
	sub := &models.Subscription{
		ID: uuid.New(), ScopeType: scope.Type, ScopeID: scope.ID,
		Status: enums.SubscriptionStatusActive, PlanID: family.ID, Plan: family,
	}

	var created *models.Subscription
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return sub, nil
		},
		createFn: func(ctx context.Context, s *models.Subscription) error {
			created = s
			return nil
		},
	}
	planRepo := &fakePlanRepo{plansByCode: map[string]*models.Plan{plans.FreePlanCode: free}}
	svc := newTestService(t, repo, planRepo)

	got, err := svc.CancelSubscription(context.Background(), sub.ID, false, "chargeback")
	if err != nil {
		t.Fatalf("CancelSubscription error: %v", err)
	}
	if got.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %s", got.Status)
	}
	if created == nil || created.PlanID != free.ID {
		t.Fatalf("expected a free replacement subscription, got %+v", created)
	}
	if created.ScopeType != scope.Type || created.ScopeID != scope.ID {
		t.Fatalf("replacement must keep the same scope: %+v", created)
	}
}

func TestService_CancelSubscriptionNotLive(t *testing.T) {
	sub := &models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusCanceled}
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return sub, nil
		},
	}
	svc := newTestService(t, repo, &fakePlanRepo{plansByCode: map[string]*models.Plan{}})

	_, err := svc.CancelSubscription(context.Background(), sub.ID, false, "")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}
