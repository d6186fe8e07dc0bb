package storage

import (
	"slices"
	"strings"

	"mercator-hq/switchboard/pkg/audit"
)

// matches reports whether an event satisfies every filter of the query.
func matches(e *audit.Event, q *audit.Query) bool {
	if q == nil {
		return true
	}
	if q.StartTime != nil && e.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && e.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.RequestID != "" && e.RequestID != q.RequestID {
		return false
	}
	if q.Backend != "" && !slices.Contains(e.AttemptedBackends(), q.Backend) {
		return false
	}
	if q.FinalStatus != "" && e.FinalStatus != q.FinalStatus {
		return false
	}
	if q.Caller != "" && e.Caller != q.Caller {
		return false
	}
	if q.CacheHit != nil && e.CacheHit != *q.CacheHit {
		return false
	}
	return true
}

// ascending reports whether results should be ordered oldest first.
func ascending(q *audit.Query) bool {
	return q != nil && strings.EqualFold(q.SortOrder, "asc")
}

// attemptedColumn encodes the trail's backend ids for LIKE filtering.
func attemptedColumn(e *audit.Event) string {
	return "," + strings.Join(e.AttemptedBackends(), ",") + ","
}
