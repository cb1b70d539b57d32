package enforcement

import (
	"strings"
	"time"
)

// WindowStart derives the aggregation window for a metric from its name
// suffix: `_per_day` counts since midnight, `_per_month` since the first of
// the month, anything else is all-time (nil).
func WindowStart(metric string, now time.Time) *time.Time {
	switch {
	case strings.HasSuffix(metric, "_per_day"):
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &start
	case strings.HasSuffix(metric, "_per_month"):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &start
	default:
		return nil
	}
}
