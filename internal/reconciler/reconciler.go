// Package reconciler converges each projector's denormalized maintenance
// fields toward what status derivation would compute live from the visit
// history. The stored status is a cache; the sweep repairs it.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"time"

	"projector-maintenance-api/internal/clock"
	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/internal/repository"
	"projector-maintenance-api/internal/status"
)

// SweepResult summarizes one full pass over all projectors.
type SweepResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// Reconciler recomputes denormalized projector maintenance state on a
// schedule or on demand.
type Reconciler struct {
	projectors repository.ProjectorRepository
	visits     repository.VisitRepository
	clk        clock.Clock

	maintenanceInterval time.Duration
	itemTimeout         time.Duration

	logger *log.Logger
}

// New creates a Reconciler.
func New(
	projectors repository.ProjectorRepository,
	visits repository.VisitRepository,
	clk clock.Clock,
	maintenanceInterval time.Duration,
	itemTimeout time.Duration,
	logger *log.Logger,
) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if maintenanceInterval <= 0 {
		maintenanceInterval = status.MaintenanceInterval
	}
	if itemTimeout <= 0 {
		itemTimeout = 10 * time.Second
	}
	return &Reconciler{
		projectors:          projectors,
		visits:              visits,
		clk:                 clk,
		maintenanceInterval: maintenanceInterval,
		itemTimeout:         itemTimeout,
		logger:              logger,
	}
}

// Run performs one full sweep. A failure on one projector is logged and does
// not abort the rest; the failed item is picked up again on the next run.
// Running twice with no intervening writes changes nothing on the second run.
func (r *Reconciler) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	projectors, err := r.projectors.GetAllProjectors(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list projectors for sweep: %w", err)
	}

	for i := range projectors {
		if err := ctx.Err(); err != nil {
			// Interrupted mid-sweep; remaining projectors are covered
			// by the next run.
			r.logger.Printf("Reconciler sweep interrupted after %d/%d projectors: %v",
				result.Processed, len(projectors), err)
			return result, err
		}

		result.Processed++
		updated, err := r.reconcileProjector(ctx, projectors[i])
		if err != nil {
			result.Failed++
			r.logger.Printf("Reconciler failed on projector %s (serial %s): %v",
				projectors[i].ID, projectors[i].SerialNo, err)
			continue
		}
		if updated {
			result.Updated++
		}
	}

	r.logger.Printf("Reconciler sweep done: processed=%d updated=%d failed=%d",
		result.Processed, result.Updated, result.Failed)

	return result, nil
}

// RunLoop runs a sweep every sweepInterval until the context is canceled. An
// initial sweep runs immediately.
func (r *Reconciler) RunLoop(ctx context.Context, sweepInterval time.Duration) {
	if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
		r.logger.Printf("Reconciler initial sweep failed: %v", err)
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Printf("Reconciler sweep failed: %v", err)
			}
		}
	}
}

// reconcileProjector recomputes one projector's denormalized fields from its
// visit history and writes only when a stored value differs.
func (r *Reconciler) reconcileProjector(ctx context.Context, projector model.Projector) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.itemTimeout)
	defer cancel()

	visits, err := r.visits.GetVisitsByProjector(ctx, projector.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load visit history: %w", err)
	}

	var lastServedAt *time.Time
	if latest := status.LatestCompleted(visits); latest != nil {
		lastServedAt = &latest.Date
	}

	target, err := status.ForProjector(lastServedAt, status.HasOpen(visits), r.clk.Now(), r.maintenanceInterval)
	if err != nil {
		return false, fmt.Errorf("failed to derive maintenance status: %w", err)
	}

	if projector.Status == target && timesEqual(projector.LastServedAt, lastServedAt) {
		return false, nil
	}

	r.logger.Printf("Reconciler repairing projector %s: status %s -> %s, lastServedAt %s -> %s",
		projector.ID, projector.Status, target,
		formatTimePtr(projector.LastServedAt), formatTimePtr(lastServedAt))

	if err := r.projectors.UpdateMaintenanceState(ctx, projector.ID, lastServedAt, target); err != nil {
		return false, fmt.Errorf("failed to write maintenance state: %w", err)
	}

	return true, nil
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "<never>"
	}
	return t.Format(time.RFC3339)
}
