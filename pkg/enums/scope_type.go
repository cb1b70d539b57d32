package enums

import "fmt"

// ScopeType identifies which kind of billable entity a scope id refers to.
type ScopeType string

const (
	ScopeTypeUser        ScopeType = "user"
	ScopeTypeFamily      ScopeType = "family"
	ScopeTypeInstitution ScopeType = "institution"
)

var validScopeTypes = []ScopeType{
	ScopeTypeUser,
	ScopeTypeFamily,
	ScopeTypeInstitution,
}

// String implements fmt.Stringer.
func (s ScopeType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ScopeType.
func (s ScopeType) IsValid() bool {
	for _, candidate := range validScopeTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseScopeType converts raw input into a ScopeType.
func ParseScopeType(value string) (ScopeType, error) {
	for _, candidate := range validScopeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid scope type %q", value)
}
