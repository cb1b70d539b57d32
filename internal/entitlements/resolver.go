package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/internal/memberships"
	"github.com/mgallardo/edustack-backend/internal/plans"
	"github.com/mgallardo/edustack-backend/internal/subscriptions"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/metrics"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// DefaultSnapshotTTL bounds how stale a snapshot may get before the
// hierarchy is walked again.
const DefaultSnapshotTTL = 24 * time.Hour

// Resolution is the answer to "what can this scope do right now".
type Resolution struct {
	Scope        types.Scope              `json:"scope"`
	Source       enums.EntitlementSource  `json:"source"`
	PlanType     enums.PlanType           `json:"plan_type"`
	Entitlements types.EntitlementPayload `json:"entitlements"`
	ExpiresAt    time.Time                `json:"expires_at"`
	FromCache    bool                     `json:"from_cache"`
}

// ServiceParams groups dependencies for the entitlement resolver.
type ServiceParams struct {
	Repo             Repository
	SubscriptionRepo subscriptions.Repository
	MembershipRepo   memberships.Repository
	PlanRepo         plans.Repository
	Logger           *logger.Logger
	Metrics          *metrics.EntitlementMetrics
	SnapshotTTL      time.Duration
	Now              func() time.Time
}

// Service resolves effective entitlements for scopes, caching results in
// snapshots.
type Service struct {
	repo       Repository
	subRepo    subscriptions.Repository
	memberRepo memberships.Repository
	planRepo   plans.Repository
	logg       *logger.Logger
	metrics    *metrics.EntitlementMetrics
	ttl        time.Duration
	now        func() time.Time
}

// NewService builds an entitlement resolver.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if params.SubscriptionRepo == nil {
		return nil, fmt.Errorf("subscription repo is required")
	}
	if params.MembershipRepo == nil {
		return nil, fmt.Errorf("membership repo is required")
	}
	if params.PlanRepo == nil {
		return nil, fmt.Errorf("plan repo is required")
	}
	ttl := params.SnapshotTTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:       params.Repo,
		subRepo:    params.SubscriptionRepo,
		memberRepo: params.MembershipRepo,
		planRepo:   params.PlanRepo,
		logg:       params.Logger,
		metrics:    params.Metrics,
		ttl:        ttl,
		now:        now,
	}, nil
}

// ComputeEntitlements walks the billing hierarchy for a user and returns the
// winning tier's payload verbatim. Precedence is institution, then family,
// then the user's own subscription, then the free plan, then the hardcoded
// floor. Memberships are checked oldest first so the winner stays stable
// when a user belongs to several scopes of the same tier.
func (s *Service) ComputeEntitlements(ctx context.Context, userID uuid.UUID) (*Resolution, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	s.metrics.IncRecompute()

	institutions, err := s.memberRepo.ListActiveInstitutions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, membership := range institutions {
		resolution, err := s.resolveLive(ctx, types.InstitutionScope(membership.InstitutionID), enums.EntitlementSourceOrg)
		if err != nil {
			return nil, err
		}
		if resolution != nil {
			return resolution, nil
		}
	}

	families, err := s.memberRepo.ListActiveFamilies(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, membership := range families {
		resolution, err := s.resolveLive(ctx, types.FamilyScope(membership.FamilyID), enums.EntitlementSourceFamily)
		if err != nil {
			return nil, err
		}
		if resolution != nil {
			return resolution, nil
		}
	}

	own, err := s.resolveLive(ctx, types.UserScope(userID), enums.EntitlementSourceIndividual)
	if err != nil {
		return nil, err
	}
	if own != nil {
		return own, nil
	}

	return s.fallback(ctx, types.UserScope(userID))
}

// resolveLive returns the scope's resolution when it holds a live
// subscription, nil when it does not.
func (s *Service) resolveLive(ctx context.Context, scope types.Scope, source enums.EntitlementSource) (*Resolution, error) {
	sub, err := s.subRepo.FindLiveByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	if sub.Plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("subscription %s has no plan loaded", sub.ID))
	}
	if sub.Plan.Type == enums.PlanTypeFree && source == enums.EntitlementSourceIndividual {
		source = enums.EntitlementSourceFree
	}
	return &Resolution{
		Scope:        scope,
		Source:       source,
		PlanType:     sub.Plan.Type,
		Entitlements: sub.Plan.Entitlements.Clone(),
	}, nil
}

// fallback resolves a scope that holds no live subscription anywhere: the
// free plan's payload when the catalog has one, the hardcoded floor
// otherwise.
func (s *Service) fallback(ctx context.Context, scope types.Scope) (*Resolution, error) {
	freePlan, err := s.planRepo.FindByCode(ctx, plans.FreePlanCode)
	if err != nil {
		return nil, err
	}
	if freePlan != nil {
		return &Resolution{
			Scope:        scope,
			Source:       enums.EntitlementSourceFree,
			PlanType:     enums.PlanTypeFree,
			Entitlements: freePlan.Entitlements.Clone(),
		}, nil
	}
	if s.logg != nil {
		s.logg.Warn(ctx, "free plan missing from catalog, serving default entitlements")
	}
	return &Resolution{
		Scope:        scope,
		Source:       enums.EntitlementSourceDefault,
		PlanType:     enums.PlanTypeFree,
		Entitlements: DefaultEntitlements(),
	}, nil
}

// ResolveUser returns the user's effective entitlements via the snapshot
// cache. A fresh snapshot is served as-is; otherwise the hierarchy is walked
// and the result stored with last-write-wins upsert semantics.
func (s *Service) ResolveUser(ctx context.Context, userID uuid.UUID) (*Resolution, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	scope := types.UserScope(userID)
	now := s.now()

	snapshot, err := s.repo.FindSnapshot(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	if snapshot != nil && !snapshot.Expired(now) {
		s.metrics.IncSnapshotHit()
		return resolutionFromSnapshot(snapshot), nil
	}
	s.metrics.IncSnapshotMiss()

	return s.refresh(ctx, userID, scope)
}

// Resolve answers for an arbitrary scope. User scopes go through the cached
// hierarchy walk; family and institution scopes read their own live
// subscription directly.
func (s *Service) Resolve(ctx context.Context, scope types.Scope) (*Resolution, error) {
	if err := scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	if scope.Type == enums.ScopeTypeUser {
		return s.ResolveUser(ctx, scope.ID)
	}
	return s.resolveDirect(ctx, scope)
}

// resolveDirect reads a non-user scope's own subscription without touching
// the snapshot cache.
func (s *Service) resolveDirect(ctx context.Context, scope types.Scope) (*Resolution, error) {
	resolution, err := s.resolveLive(ctx, scope, enums.EntitlementSourceDirect)
	if err != nil {
		return nil, err
	}
	if resolution == nil {
		resolution, err = s.fallback(ctx, scope)
		if err != nil {
			return nil, err
		}
	}
	if err := s.applyOverride(ctx, scope, resolution); err != nil {
		return nil, err
	}
	return resolution, nil
}

// GetEntitlement reads the snapshot for an exact (user, scope) pair, falling
// back one level to the user's own snapshot before recomputing.
func (s *Service) GetEntitlement(ctx context.Context, userID uuid.UUID, scope types.Scope) (*Resolution, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	now := s.now()

	snapshot, err := s.repo.FindSnapshot(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	if snapshot != nil && !snapshot.Expired(now) {
		s.metrics.IncSnapshotHit()
		return resolutionFromSnapshot(snapshot), nil
	}

	userScope := types.UserScope(userID)
	if scope != userScope {
		userSnapshot, err := s.repo.FindSnapshot(ctx, userID, userScope)
		if err != nil {
			return nil, err
		}
		if userSnapshot != nil && !userSnapshot.Expired(now) {
			s.metrics.IncSnapshotHit()
			return resolutionFromSnapshot(userSnapshot), nil
		}
	}
	s.metrics.IncSnapshotMiss()

	return s.refresh(ctx, userID, scope)
}

// ForceRefresh recomputes a user's snapshot immediately, bypassing any
// cached row. Callers use it right after plan changes so the new plan is
// visible without waiting out the TTL.
func (s *Service) ForceRefresh(ctx context.Context, userID uuid.UUID) (*Resolution, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.refresh(ctx, userID, types.UserScope(userID))
}

// refresh recomputes, layers overrides and stores the snapshot.
func (s *Service) refresh(ctx context.Context, userID uuid.UUID, scope types.Scope) (*Resolution, error) {
	var (
		resolution *Resolution
		err        error
	)
	if scope.Type == enums.ScopeTypeUser {
		resolution, err = s.ComputeEntitlements(ctx, userID)
	} else {
		resolution, err = s.resolveLive(ctx, scope, enums.EntitlementSourceDirect)
		if err == nil && resolution == nil {
			resolution, err = s.fallback(ctx, scope)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := s.applyOverride(ctx, scope, resolution); err != nil {
		return nil, err
	}

	now := s.now()
	resolution.Scope = scope
	resolution.ExpiresAt = now.Add(s.ttl)

	snapshot := &models.EntitlementSnapshot{
		UserID:       userID,
		ScopeType:    scope.Type,
		ScopeID:      scope.ID,
		Source:       resolution.Source,
		PlanType:     resolution.PlanType,
		Entitlements: resolution.Entitlements.Clone(),
		ExpiresAt:    resolution.ExpiresAt,
	}
	if err := s.repo.UpsertSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	return resolution, nil
}

// applyOverride layers the scope's admin override on top of the computed
// payload. Override entries win per key; everything else passes through.
func (s *Service) applyOverride(ctx context.Context, scope types.Scope, resolution *Resolution) error {
	override, err := s.repo.FindOverride(ctx, scope)
	if err != nil {
		return err
	}
	if override == nil {
		return nil
	}

	merged := resolution.Entitlements.Clone()
	if len(override.Entitlements.Limits) > 0 && merged.Limits == nil {
		merged.Limits = make(map[string]int64, len(override.Entitlements.Limits))
	}
	for metric, limit := range override.Entitlements.Limits {
		merged.Limits[metric] = limit
	}
	if len(override.Entitlements.Features) > 0 && merged.Features == nil {
		merged.Features = make(map[string]bool, len(override.Entitlements.Features))
	}
	for feature, enabled := range override.Entitlements.Features {
		merged.Features[feature] = enabled
	}
	resolution.Entitlements = merged
	return nil
}

func resolutionFromSnapshot(snapshot *models.EntitlementSnapshot) *Resolution {
	return &Resolution{
		Scope:        types.Scope{Type: snapshot.ScopeType, ID: snapshot.ScopeID},
		Source:       snapshot.Source,
		PlanType:     snapshot.PlanType,
		Entitlements: snapshot.Entitlements.Clone(),
		ExpiresAt:    snapshot.ExpiresAt,
		FromCache:    true,
	}
}
