package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mgallardo/edustack-backend/internal/plans"
	"github.com/mgallardo/edustack-backend/pkg/db"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	PlanRepo          plans.Repository
	TransactionRunner txRunner
	Now               func() time.Time
}

// Service manages the subscription lifecycle for user, family and
// institution scopes.
type Service struct {
	repo     Repository
	planRepo plans.Repository
	txRunner txRunner
	now      func() time.Time
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if params.PlanRepo == nil {
		return nil, fmt.Errorf("plan repo is required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:     params.Repo,
		planRepo: params.PlanRepo,
		txRunner: params.TransactionRunner,
		now:      now,
	}, nil
}

// PlanSummary is the compact plan identity used in change results.
type PlanSummary struct {
	PlanID uuid.UUID      `json:"plan_id"`
	Code   string         `json:"code"`
	Name   string         `json:"name"`
	Type   enums.PlanType `json:"type"`
}

// PlanChange reports the outcome of an AssignPlan call.
type PlanChange struct {
	Before       *PlanSummary         `json:"before"`
	After        PlanSummary          `json:"after"`
	Subscription *models.Subscription `json:"subscription"`
}

// AssignPlanInput captures a plan assignment request.
type AssignPlanInput struct {
	Scope    types.Scope `json:"scope"`
	PlanCode string      `json:"plan_code"`
	Actor    string      `json:"actor"`
	Reason   string      `json:"reason"`
}

type changeMetadata struct {
	ChangedBy    string `json:"changed_by,omitempty"`
	Reason       string `json:"reason,omitempty"`
	PreviousPlan string `json:"previous_plan,omitempty"`
}

// CreateInitialSubscription ensures a scope holds a live subscription.
// An existing live subscription is returned unchanged; otherwise a free
// subscription is created with no period end. The returned bool reports
// whether a row was created.
func (s *Service) CreateInitialSubscription(ctx context.Context, scope types.Scope) (*models.Subscription, bool, error) {
	if err := scope.Validate(); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}

	if existing, err := s.repo.FindLiveByScope(ctx, scope); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	freePlan, err := s.planRepo.FindByCode(ctx, plans.FreePlanCode)
	if err != nil {
		return nil, false, err
	}
	if freePlan == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeInternal, "free plan is not seeded")
	}

	sub := &models.Subscription{
		ScopeType:          scope.Type,
		ScopeID:            scope.ID,
		PlanID:             freePlan.ID,
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: s.now(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		// concurrent bootstrap of the same scope
		if db.IsUniqueViolation(err) {
			existing, findErr := s.repo.FindLiveByScope(ctx, scope)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	sub.Plan = freePlan
	return sub, true, nil
}

// GetActiveSubscription returns the scope's live subscription with its plan
// loaded. The absence of one is an internal invariant failure since every
// scope is bootstrapped onto the free plan.
func (s *Service) GetActiveSubscription(ctx context.Context, scope types.Scope) (*models.Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	sub, err := s.repo.FindLiveByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionMissing, fmt.Sprintf("no live subscription for scope %s", scope))
	}
	return sub, nil
}

// HasActiveSubscription reports whether the scope holds a live subscription.
func (s *Service) HasActiveSubscription(ctx context.Context, scope types.Scope) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	sub, err := s.repo.FindLiveByScope(ctx, scope)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// ListSubscriptions returns the scope's full subscription history, newest first.
func (s *Service) ListSubscriptions(ctx context.Context, scope types.Scope) ([]models.Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	return s.repo.ListByScope(ctx, scope)
}

// AssignPlan moves a scope onto the named plan. The live subscription is
// canceled and the replacement created in one transaction so the scope never
// observes zero or two live subscriptions.
func (s *Service) AssignPlan(ctx context.Context, input AssignPlanInput) (*PlanChange, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	planCode := strings.TrimSpace(input.PlanCode)
	if planCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan_code is required")
	}

	var change *PlanChange
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txPlanRepo := s.planRepo.WithTx(tx)

		plan, err := txPlanRepo.FindByCode(ctx, planCode)
		if err != nil {
			return err
		}
		if plan == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q not found", planCode))
		}
		if !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %q is not purchasable", planCode))
		}

		now := s.now()
		live, err := txRepo.FindLiveByScope(ctx, input.Scope)
		if err != nil {
			return err
		}

		var before *PlanSummary
		meta := changeMetadata{ChangedBy: input.Actor, Reason: input.Reason}
		if live != nil {
			if live.PlanID == plan.ID {
				change = &PlanChange{
					Before:       summarize(live.Plan),
					After:        *summarize(plan),
					Subscription: live,
				}
				return nil
			}
			before = summarize(live.Plan)
			if before != nil {
				meta.PreviousPlan = before.Code
			}

			live.Status = enums.SubscriptionStatusCanceled
			live.CanceledAt = &now
			live.CancelAtPeriodEnd = false
			if err := txRepo.Update(ctx, live); err != nil {
				return err
			}
		}

		metadata, err := json.Marshal(meta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode change metadata")
		}

		replacement := &models.Subscription{
			ScopeType:          input.Scope.Type,
			ScopeID:            input.Scope.ID,
			PlanID:             plan.ID,
			Status:             enums.SubscriptionStatusActive,
			CurrentPeriodStart: now,
			Metadata:           metadata,
		}
		if plan.Type != enums.PlanTypeFree {
			end := now.AddDate(0, 1, 0)
			replacement.CurrentPeriodEnd = &end
		}
		if err := txRepo.Create(ctx, replacement); err != nil {
			return err
		}
		replacement.Plan = plan

		change = &PlanChange{
			Before:       before,
			After:        *summarize(plan),
			Subscription: replacement,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// CancelSubscription cancels by subscription id. With cancelAtPeriodEnd the
// flag is flipped and nothing else changes. An immediate cancel of a paid
// plan atomically drops the scope back onto the free plan.
func (s *Service) CancelSubscription(ctx context.Context, id uuid.UUID, cancelAtPeriodEnd bool, reason string) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	var result *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		sub, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if !sub.Status.IsLive() {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription is not live")
		}

		if cancelAtPeriodEnd {
			sub.CancelAtPeriodEnd = true
			if err := txRepo.Update(ctx, sub); err != nil {
				return err
			}
			result = sub
			return nil
		}

		now := s.now()
		sub.Status = enums.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		sub.CancelAtPeriodEnd = false
		if err := txRepo.Update(ctx, sub); err != nil {
			return err
		}

		if sub.Plan == nil || sub.Plan.Type != enums.PlanTypeFree {
			freePlan, err := s.planRepo.WithTx(tx).FindByCode(ctx, plans.FreePlanCode)
			if err != nil {
				return err
			}
			if freePlan == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "free plan is not seeded")
			}

			meta := changeMetadata{Reason: reason}
			if sub.Plan != nil {
				meta.PreviousPlan = sub.Plan.Code
			}
			metadata, err := json.Marshal(meta)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode change metadata")
			}

			replacement := &models.Subscription{
				ScopeType:          sub.ScopeType,
				ScopeID:            sub.ScopeID,
				PlanID:             freePlan.ID,
				Status:             enums.SubscriptionStatusActive,
				CurrentPeriodStart: now,
				Metadata:           metadata,
			}
			if err := txRepo.Create(ctx, replacement); err != nil {
				return err
			}
		}

		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func summarize(plan *models.Plan) *PlanSummary {
	if plan == nil {
		return nil
	}
	return &PlanSummary{
		PlanID: plan.ID,
		Code:   plan.Code,
		Name:   plan.Name,
		Type:   plan.Type,
	}
}
