package entitlements

import "github.com/mgallardo/edustack-backend/pkg/types"

// DefaultEntitlements is the compile-time floor used when even the free plan
// row is missing from the catalog. Resolution never fails outright; a user
// with no catalog at all still gets these.
func DefaultEntitlements() types.EntitlementPayload {
	return types.EntitlementPayload{
		Limits: map[string]int64{
			"ai_requests_per_day": 10,
			"storage_mb":          50,
		},
		Features: map[string]bool{
			"basic_content": true,
		},
	}
}
