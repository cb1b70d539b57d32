package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EntitlementMetrics tracks resolver cache behavior and enforcement denials.
type EntitlementMetrics struct {
	snapshotHits   prometheus.Counter
	snapshotMisses prometheus.Counter
	recomputes     prometheus.Counter
	denials        *prometheus.CounterVec
}

// NewEntitlementMetrics registers the entitlement metrics on the provided
// registerer.
func NewEntitlementMetrics(reg prometheus.Registerer) *EntitlementMetrics {
	if reg == nil {
		return &EntitlementMetrics{}
	}
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entitlement_snapshot_hits",
		Help: "Entitlement resolutions served from a fresh snapshot.",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entitlement_snapshot_misses",
		Help: "Entitlement resolutions that found no usable snapshot.",
	})
	recomputes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entitlement_recomputes",
		Help: "Full hierarchy walks performed to refresh a snapshot.",
	})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enforcement_denials",
		Help: "Requests denied by the enforcement gate.",
	}, []string{"kind", "key"})
	reg.MustRegister(hits, misses, recomputes, denials)
	return &EntitlementMetrics{
		snapshotHits:   hits,
		snapshotMisses: misses,
		recomputes:     recomputes,
		denials:        denials,
	}
}

// IncSnapshotHit counts a resolution served from cache.
func (m *EntitlementMetrics) IncSnapshotHit() {
	if m == nil || m.snapshotHits == nil {
		return
	}
	m.snapshotHits.Inc()
}

// IncSnapshotMiss counts a resolution that had to recompute.
func (m *EntitlementMetrics) IncSnapshotMiss() {
	if m == nil || m.snapshotMisses == nil {
		return
	}
	m.snapshotMisses.Inc()
}

// IncRecompute counts a full hierarchy walk.
func (m *EntitlementMetrics) IncRecompute() {
	if m == nil || m.recomputes == nil {
		return
	}
	m.recomputes.Inc()
}

// IncLimitDenial counts an enforcement denial for a metric.
func (m *EntitlementMetrics) IncLimitDenial(metric string) {
	if m == nil || m.denials == nil {
		return
	}
	m.denials.WithLabelValues("limit", normalizeLabel(metric)).Inc()
}

// IncFeatureDenial counts an enforcement denial for a feature key.
func (m *EntitlementMetrics) IncFeatureDenial(feature string) {
	if m == nil || m.denials == nil {
		return
	}
	m.denials.WithLabelValues("feature", normalizeLabel(feature)).Inc()
}
