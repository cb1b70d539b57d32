package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
)

// InstitutionMembership links a user to an institution scope.
type InstitutionMembership struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstitutionID uuid.UUID              `gorm:"column:institution_id;type:uuid;not null;uniqueIndex:uq_institution_memberships_pair"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_institution_memberships_pair"`
	Status        enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
