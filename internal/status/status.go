// Package status holds the single implementation of visit and projector
// status derivation. Every consumer (scheduler, reconciler, aggregator,
// handlers) must call into this package rather than re-deriving status ad
// hoc; duplicated derivation is exactly the inconsistency the package exists
// to prevent.
package status

import (
	"time"

	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/pkg/errors"
)

// VisitStatus is the authoritative, recomputed-on-read status of one visit.
type VisitStatus string

const (
	VisitPending    VisitStatus = "pending"
	VisitScheduled  VisitStatus = "scheduled"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
)

// MaintenanceInterval is how long a completed service is considered current.
// A projector last served longer ago than this is due again.
const MaintenanceInterval = 180 * 24 * time.Hour

// ForVisit derives a visit's status from its raw fields. Pure and
// deterministic: identical inputs always produce identical output.
//
//	completed   - end time set or report generated
//	in_progress - not completed, start time set
//	scheduled   - not completed, not started, worker assigned
//	pending     - otherwise
func ForVisit(v model.ServiceVisit) VisitStatus {
	switch {
	case v.EndTime != nil || v.ReportGenerated:
		return VisitCompleted
	case v.StartTime != nil:
		return VisitInProgress
	case v.WorkerID != nil:
		return VisitScheduled
	default:
		return VisitPending
	}
}

// IsOpen reports whether a visit is still in the pipeline, meaning its
// derived status is scheduled or in_progress.
func IsOpen(v model.ServiceVisit) bool {
	s := ForVisit(v)
	return s == VisitScheduled || s == VisitInProgress
}

// ForProjector derives a projector's maintenance status from its last
// completed service and whether any visit is still in the pipeline.
//
// An open visit forces "scheduled" regardless of how overdue the projector
// is: visible in-the-pipeline work takes precedence over the interval rule.
// Otherwise the status is "completed" while lastServedAt falls within the
// interval of now, and "pending" once it does not (or never served).
func ForProjector(lastServedAt *time.Time, hasOpenVisit bool, now time.Time, interval time.Duration) (model.MaintenanceStatus, error) {
	if interval <= 0 {
		return "", errors.ValidationError("maintenance interval must be positive")
	}
	if now.IsZero() {
		return "", errors.ValidationError("current time must be set")
	}

	if hasOpenVisit {
		return model.MaintenanceScheduled, nil
	}
	if lastServedAt != nil && now.Sub(*lastServedAt) < interval {
		return model.MaintenanceCompleted, nil
	}
	return model.MaintenancePending, nil
}

// LatestCompleted returns the visit with the most recent date among those
// whose derived status is completed, or nil if none exists.
func LatestCompleted(visits []model.ServiceVisit) *model.ServiceVisit {
	var latest *model.ServiceVisit
	for i := range visits {
		if ForVisit(visits[i]) != VisitCompleted {
			continue
		}
		if latest == nil || visits[i].Date.After(latest.Date) {
			latest = &visits[i]
		}
	}
	return latest
}

// HasOpen reports whether any visit in the slice is open.
func HasOpen(visits []model.ServiceVisit) bool {
	for i := range visits {
		if IsOpen(visits[i]) {
			return true
		}
	}
	return false
}
