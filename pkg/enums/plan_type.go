package enums

import "fmt"

// PlanType maps a plan to the tier of scope it is sold for.
type PlanType string

const (
	PlanTypeFree        PlanType = "free"
	PlanTypeIndividual  PlanType = "individual"
	PlanTypeFamily      PlanType = "family"
	PlanTypeInstitution PlanType = "institution"
)

var validPlanTypes = []PlanType{
	PlanTypeFree,
	PlanTypeIndividual,
	PlanTypeFamily,
	PlanTypeInstitution,
}

// String implements fmt.Stringer.
func (p PlanType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanType.
func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanType converts raw input into a PlanType.
func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
