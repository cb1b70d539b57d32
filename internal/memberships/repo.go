package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mgallardo/edustack-backend/internal/repo"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
)

// Repository reads and writes family and institution memberships.
//
// List ordering is load-bearing: entitlement resolution picks the first
// membership whose scope holds a live subscription, so lists are pinned to
// created_at ASC, id ASC to keep the winner stable across recomputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AddFamilyMember(ctx context.Context, familyID, userID uuid.UUID, status enums.MembershipStatus) (*models.FamilyMembership, error)
	AddInstitutionMember(ctx context.Context, institutionID, userID uuid.UUID, status enums.MembershipStatus) (*models.InstitutionMembership, error)
	SetFamilyMemberStatus(ctx context.Context, familyID, userID uuid.UUID, status enums.MembershipStatus) error
	SetInstitutionMemberStatus(ctx context.Context, institutionID, userID uuid.UUID, status enums.MembershipStatus) error
	ListActiveFamilies(ctx context.Context, userID uuid.UUID) ([]models.FamilyMembership, error)
	ListActiveInstitutions(ctx context.Context, userID uuid.UUID) ([]models.InstitutionMembership, error)
	ListActiveFamilyMemberIDs(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error)
	ListActiveInstitutionMemberIDs(ctx context.Context, institutionID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a membership repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) AddFamilyMember(ctx context.Context, familyID, userID uuid.UUID, status enums.MembershipStatus) (*models.FamilyMembership, error) {
	membership := &models.FamilyMembership{
		FamilyID: familyID,
		UserID:   userID,
		Status:   status,
	}
	if err := r.DB(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

func (r *repository) AddInstitutionMember(ctx context.Context, institutionID, userID uuid.UUID, status enums.MembershipStatus) (*models.InstitutionMembership, error) {
	membership := &models.InstitutionMembership{
		InstitutionID: institutionID,
		UserID:        userID,
		Status:        status,
	}
	if err := r.DB(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

func (r *repository) SetFamilyMemberStatus(ctx context.Context, familyID, userID uuid.UUID, status enums.MembershipStatus) error {
	return r.DB(ctx).
		Model(&models.FamilyMembership{}).
		Where("family_id = ? AND user_id = ?", familyID, userID).
		Update("status", status).Error
}

func (r *repository) SetInstitutionMemberStatus(ctx context.Context, institutionID, userID uuid.UUID, status enums.MembershipStatus) error {
	return r.DB(ctx).
		Model(&models.InstitutionMembership{}).
		Where("institution_id = ? AND user_id = ?", institutionID, userID).
		Update("status", status).Error
}

func (r *repository) ListActiveFamilies(ctx context.Context, userID uuid.UUID) ([]models.FamilyMembership, error) {
	var memberships []models.FamilyMembership
	if err := r.DB(ctx).
		Where("user_id = ? AND status = ?", userID, enums.MembershipStatusActive).
		Order("created_at ASC, id ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *repository) ListActiveInstitutions(ctx context.Context, userID uuid.UUID) ([]models.InstitutionMembership, error) {
	var memberships []models.InstitutionMembership
	if err := r.DB(ctx).
		Where("user_id = ? AND status = ?", userID, enums.MembershipStatusActive).
		Order("created_at ASC, id ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *repository) ListActiveFamilyMemberIDs(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.DB(ctx).
		Model(&models.FamilyMembership{}).
		Where("family_id = ? AND status = ?", familyID, enums.MembershipStatusActive).
		Order("created_at ASC, id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListActiveInstitutionMemberIDs(ctx context.Context, institutionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.DB(ctx).
		Model(&models.InstitutionMembership{}).
		Where("institution_id = ? AND status = ?", institutionID, enums.MembershipStatusActive).
		Order("created_at ASC, id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
