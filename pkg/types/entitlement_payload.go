package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// UnlimitedLimit is the sentinel value meaning a metric has no cap.
const UnlimitedLimit int64 = -1

// EntitlementPayload is the limits/features pair a plan grants. It is stored
// as a single jsonb column and copied verbatim from exactly one plan tier
// when entitlements are resolved.
type EntitlementPayload struct {
	Limits   map[string]int64 `json:"limits"`
	Features map[string]bool  `json:"features"`
}

// Clone returns a deep copy so cached payloads cannot be mutated by callers.
func (p EntitlementPayload) Clone() EntitlementPayload {
	out := EntitlementPayload{
		Limits:   make(map[string]int64, len(p.Limits)),
		Features: make(map[string]bool, len(p.Features)),
	}
	for k, v := range p.Limits {
		out.Limits[k] = v
	}
	for k, v := range p.Features {
		out.Features[k] = v
	}
	return out
}

// Limit returns the configured limit for metric and whether one exists.
func (p EntitlementPayload) Limit(metric string) (int64, bool) {
	if p.Limits == nil {
		return 0, false
	}
	limit, ok := p.Limits[metric]
	return limit, ok
}

// HasFeature reports whether the feature key is enabled.
func (p EntitlementPayload) HasFeature(key string) bool {
	if p.Features == nil {
		return false
	}
	return p.Features[key]
}

// Value marshals the payload into jsonb.
func (p EntitlementPayload) Value() (driver.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("entitlement payload: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a jsonb column back into the payload.
func (p *EntitlementPayload) Scan(value interface{}) error {
	if value == nil {
		*p = EntitlementPayload{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("entitlement payload: unsupported scan type %T", value)
	}

	if len(raw) == 0 {
		*p = EntitlementPayload{}
		return nil
	}
	return json.Unmarshal(raw, p)
}
