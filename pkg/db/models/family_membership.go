package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
)

// FamilyMembership links a user to a family scope.
type FamilyMembership struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FamilyID  uuid.UUID              `gorm:"column:family_id;type:uuid;not null;uniqueIndex:uq_family_memberships_pair"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_family_memberships_pair"`
	Status    enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
