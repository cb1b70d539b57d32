package types

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
)

// Scope identifies a billable entity: a user, a family, or an institution.
// Scope identity never changes after creation.
type Scope struct {
	Type enums.ScopeType `json:"scope_type"`
	ID   uuid.UUID       `json:"scope_id"`
}

// UserScope builds a USER scope for the given user id.
func UserScope(userID uuid.UUID) Scope {
	return Scope{Type: enums.ScopeTypeUser, ID: userID}
}

// FamilyScope builds a FAMILY scope for the given family id.
func FamilyScope(familyID uuid.UUID) Scope {
	return Scope{Type: enums.ScopeTypeFamily, ID: familyID}
}

// InstitutionScope builds an INSTITUTION scope for the given institution id.
func InstitutionScope(institutionID uuid.UUID) Scope {
	return Scope{Type: enums.ScopeTypeInstitution, ID: institutionID}
}

// Validate checks both halves of the scope identity.
func (s Scope) Validate() error {
	if !s.Type.IsValid() {
		return fmt.Errorf("invalid scope type %q", s.Type)
	}
	if s.ID == uuid.Nil {
		return fmt.Errorf("scope id is required")
	}
	return nil
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}
