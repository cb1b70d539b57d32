package enforcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mgallardo/edustack-backend/internal/entitlements"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/metrics"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

type resolver interface {
	Resolve(ctx context.Context, scope types.Scope) (*entitlements.Resolution, error)
}

type usageReader interface {
	SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error)
}

// ServiceParams groups dependencies for the enforcement gate.
type ServiceParams struct {
	Resolver resolver
	Usage    usageReader
	Logger   *logger.Logger
	Metrics  *metrics.EntitlementMetrics
	Now      func() time.Time
}

// Service is the yes/no gate request handlers call before doing metered or
// gated work.
type Service struct {
	resolver resolver
	usage    usageReader
	logg     *logger.Logger
	metrics  *metrics.EntitlementMetrics
	now      func() time.Time
}

// NewService builds an enforcement gate.
func NewService(params ServiceParams) (*Service, error) {
	if params.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage reader is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		resolver: params.Resolver,
		usage:    params.Usage,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// Attempt records one scope's outcome during a hierarchy check.
type Attempt struct {
	Scope   string `json:"scope"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// LimitProbe is the result of a non-mutating limit check.
type LimitProbe struct {
	Exceeded  bool  `json:"exceeded"`
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Unlimited bool  `json:"unlimited"`
}

// RequireFeature allows the call when the scope's entitlements enable the
// feature key.
func (s *Service) RequireFeature(ctx context.Context, scope types.Scope, feature string) error {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "feature key is required")
	}

	resolution, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		return err
	}
	if resolution.Entitlements.HasFeature(feature) {
		return nil
	}

	s.metrics.IncFeatureDenial(feature)
	if s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("feature %q denied for scope %s", feature, scope))
	}
	return pkgerrors.New(pkgerrors.CodeFeatureDisabled, fmt.Sprintf("feature %q is not enabled", feature)).
		WithDetails(map[string]any{
			"feature": feature,
			"scope":   scope.String(),
			"source":  resolution.Source,
		})
}

// EnforceLimit allows the call when recording quantity more of the metric
// keeps the scope at or under its limit. A missing limit and the -1 sentinel
// both mean unlimited.
func (s *Service) EnforceLimit(ctx context.Context, scope types.Scope, metric string, quantity int64) error {
	probe, resolution, err := s.probe(ctx, scope, metric, quantity)
	if err != nil {
		return err
	}
	if !probe.Exceeded {
		return nil
	}

	s.metrics.IncLimitDenial(metric)
	if s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("limit %q exceeded for scope %s (%d/%d)", metric, scope, probe.Current, probe.Limit))
	}
	return pkgerrors.New(pkgerrors.CodeLimitExceeded, fmt.Sprintf("limit exceeded for %q", metric)).
		WithDetails(map[string]any{
			"metric":    metric,
			"limit":     probe.Limit,
			"current":   probe.Current,
			"requested": quantity,
			"source":    resolution.Source,
		})
}

// WouldExceedLimit reports what EnforceLimit would decide without denying.
func (s *Service) WouldExceedLimit(ctx context.Context, scope types.Scope, metric string, quantity int64) (*LimitProbe, error) {
	probe, _, err := s.probe(ctx, scope, metric, quantity)
	if err != nil {
		return nil, err
	}
	return probe, nil
}

func (s *Service) probe(ctx context.Context, scope types.Scope, metric string, quantity int64) (*LimitProbe, *entitlements.Resolution, error) {
	metric = strings.TrimSpace(metric)
	if metric == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "metric is required")
	}
	if quantity <= 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	resolution, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		return nil, nil, err
	}

	limit, ok := resolution.Entitlements.Limit(metric)
	if !ok || limit == types.UnlimitedLimit {
		return &LimitProbe{Unlimited: true, Limit: types.UnlimitedLimit}, resolution, nil
	}

	current, err := s.usage.SumForScope(ctx, scope, metric, WindowStart(metric, s.now()))
	if err != nil {
		return nil, nil, err
	}

	return &LimitProbe{
		Exceeded: current+quantity > limit,
		Current:  current,
		Limit:    limit,
	}, resolution, nil
}

// EnforceHierarchy checks the metric against each scope in caller order and
// returns the first scope that allows, so the caller knows which pool the
// request was charged against. When every scope denies, the last failure is
// returned carrying the full attempt list so callers can see exactly which
// scopes were tried and why each refused.
func (s *Service) EnforceHierarchy(ctx context.Context, scopes []types.Scope, metric string, quantity int64) (types.Scope, error) {
	return s.hierarchy(ctx, scopes, func(scope types.Scope) error {
		return s.EnforceLimit(ctx, scope, metric, quantity)
	})
}

// RequireFeatureHierarchy is EnforceHierarchy for feature checks.
func (s *Service) RequireFeatureHierarchy(ctx context.Context, scopes []types.Scope, feature string) (types.Scope, error) {
	return s.hierarchy(ctx, scopes, func(scope types.Scope) error {
		return s.RequireFeature(ctx, scope, feature)
	})
}

func (s *Service) hierarchy(ctx context.Context, scopes []types.Scope, check func(scope types.Scope) error) (types.Scope, error) {
	if len(scopes) == 0 {
		return types.Scope{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one scope is required")
	}

	attempts := make([]Attempt, 0, len(scopes))
	var lastErr error
	for _, scope := range scopes {
		err := check(scope)
		if err == nil {
			return scope, nil
		}
		attempts = append(attempts, Attempt{
			Scope:   scope.String(),
			Allowed: false,
			Reason:  err.Error(),
		})
		lastErr = err
	}

	if typed := pkgerrors.As(lastErr); typed != nil {
		details := map[string]any{"attempts": attempts}
		if existing, ok := typed.Details().(map[string]any); ok {
			for key, value := range existing {
				details[key] = value
			}
		}
		return types.Scope{}, typed.WithDetails(details)
	}
	return types.Scope{}, lastErr
}
