package entitlements

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/db/models"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// SetOverrideInput captures an admin override write.
type SetOverrideInput struct {
	Scope        types.Scope              `json:"scope"`
	Entitlements types.EntitlementPayload `json:"entitlements"`
	Reason       string                   `json:"reason"`
	CreatedBy    *uuid.UUID               `json:"created_by"`
}

// GetOverride returns the scope's override, NOT_FOUND when none exists.
func (s *Service) GetOverride(ctx context.Context, scope types.Scope) (*models.EntitlementOverride, error) {
	if err := scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	override, err := s.repo.FindOverride(ctx, scope)
	if err != nil {
		return nil, err
	}
	if override == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no override for scope")
	}
	return override, nil
}

// SetOverride writes (or replaces) the scope's override and invalidates the
// affected snapshots so the change is visible on the next resolution rather
// than after the TTL runs out.
func (s *Service) SetOverride(ctx context.Context, input SetOverrideInput) (*models.EntitlementOverride, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	for metric, limit := range input.Entitlements.Limits {
		if strings.TrimSpace(metric) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit metric keys must not be empty")
		}
		if limit < types.UnlimitedLimit {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "limits must be -1 (unlimited) or non-negative")
		}
	}

	override := &models.EntitlementOverride{
		ScopeType:    input.Scope.Type,
		ScopeID:      input.Scope.ID,
		Entitlements: input.Entitlements.Clone(),
		CreatedBy:    input.CreatedBy,
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		override.Reason = &reason
	}

	if err := s.repo.UpsertOverride(ctx, override); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteSnapshotsForScope(ctx, input.Scope); err != nil {
		return nil, err
	}
	return override, nil
}

// DeleteOverride removes the scope's override and invalidates the affected
// snapshots.
func (s *Service) DeleteOverride(ctx context.Context, scope types.Scope) error {
	if err := scope.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope")
	}
	if err := s.repo.DeleteOverride(ctx, scope); err != nil {
		return err
	}
	return s.repo.DeleteSnapshotsForScope(ctx, scope)
}
