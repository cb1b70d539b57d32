package enums

import "fmt"

// EntitlementSource records which tier of the scope hierarchy produced an
// entitlement result.
type EntitlementSource string

const (
	EntitlementSourceOrg        EntitlementSource = "org"
	EntitlementSourceFamily     EntitlementSource = "family"
	EntitlementSourceIndividual EntitlementSource = "individual"
	EntitlementSourceFree       EntitlementSource = "free"
	EntitlementSourceDirect     EntitlementSource = "direct"
	EntitlementSourceDefault    EntitlementSource = "default"
)

var validEntitlementSources = []EntitlementSource{
	EntitlementSourceOrg,
	EntitlementSourceFamily,
	EntitlementSourceIndividual,
	EntitlementSourceFree,
	EntitlementSourceDirect,
	EntitlementSourceDefault,
}

// String implements fmt.Stringer.
func (e EntitlementSource) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EntitlementSource.
func (e EntitlementSource) IsValid() bool {
	for _, candidate := range validEntitlementSources {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntitlementSource converts raw input into an EntitlementSource.
func ParseEntitlementSource(value string) (EntitlementSource, error) {
	for _, candidate := range validEntitlementSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entitlement source %q", value)
}
