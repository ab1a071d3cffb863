package photographers

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

// RebalanceResult reports one balancer pass.
type RebalanceResult struct {
	Assigned    int            `json:"assigned"`
	Cleared     int64          `json:"cleared"`
	Reassigned  bool           `json:"reassigned"`
	Assignments map[string]int `json:"assignments"`
}

// Stats is one photographer's workload.
type Stats struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Percentage  int    `json:"percentage"`
	Active      bool   `json:"active"`
	Locked      bool   `json:"locked"`
	Completed   int64  `json:"completed"`
	Pending     int64  `json:"pending"`
}

type candidate struct {
	userID     string
	percentage int
}

// workload is the persisted state one pick is computed from.
type workload struct {
	pending   int64
	completed map[string]int64
	assigned  map[string]int64
}

func (w workload) completedTotal() int64 {
	var total int64
	for _, n := range w.completed {
		total += n
	}
	return total
}

// deficit is how far a photographer is below their share of the window's
// work. The target is taken over queued plus already completed jobs, and jobs
// completed or currently held both count against it. A target over the queue
// alone would let window history swamp the shares.
func (w workload) deficit(c candidate) float64 {
	total := float64(w.pending + w.completedTotal())
	target := float64(c.percentage) * total / 100
	return target - float64(w.completed[c.userID]+w.assigned[c.userID])
}

// pick returns the candidate with the largest deficit. Ties go to the lowest
// user id so passes are deterministic.
func pick(candidates []candidate, w workload) candidate {
	best := candidates[0]
	bestDeficit := w.deficit(best)
	for _, c := range candidates[1:] {
		if d := w.deficit(c); d > bestDeficit {
			best, bestDeficit = c, d
		}
	}
	return best
}

// Rebalance hands every unassigned pending job to the unlocked photographer
// with the largest deficit. Counts are re-read before each pick, so an
// aborted pass can simply be run again. With reassign, pending jobs held by
// unlocked photographers are released first.
func (s *service) Rebalance(ctx context.Context, reassign bool) (*RebalanceResult, error) {
	allocations, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocations")
	}
	candidates := make([]candidate, 0, len(allocations))
	for _, row := range allocations {
		if row.Counts() && !row.Locked {
			candidates = append(candidates, candidate{userID: row.UserID, percentage: row.Percentage})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].userID < candidates[j].userID })

	result := &RebalanceResult{Reassigned: reassign, Assignments: map[string]int{}}
	if len(candidates) == 0 {
		return result, nil
	}
	if reassign {
		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			ids = append(ids, c.userID)
		}
		if result.Cleared, err = s.photos.ClearPendingAssignments(ctx, ids); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release assignments")
		}
	}

	budget, err := s.photos.CountPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending photos")
	}
	for i := int64(0); i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		job, err := s.photos.NextUnassigned(ctx)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next pending photo")
		}
		if job == nil {
			break
		}
		w, err := s.workload(ctx)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load workload")
		}
		chosen := pick(candidates, w)
		if err := s.assign(ctx, job.VehicleID, chosen.userID); err != nil {
			return result, err
		}
		result.Assigned++
		result.Assignments[chosen.userID]++
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPhotographyRebalance,
			AggregateType: enums.AggregatePhotography,
			AggregateID:   "balancer",
			Data: payloads.PhotographyRebalancedEvent{
				Assigned:    result.Assigned,
				Reassigned:  reassign,
				Assignments: result.Assignments,
			},
		})
	})
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue rebalance event")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assigned":   result.Assigned,
		"cleared":    result.Cleared,
		"reassigned": reassign,
	})
	s.logg.Info(logCtx, "photography rebalanced")
	return result, nil
}

func (s *service) workload(ctx context.Context) (workload, error) {
	from := s.windowStart()
	pending, err := s.photos.CountPending(ctx)
	if err != nil {
		return workload{}, err
	}
	completed, err := s.photos.CompletedByPhotographer(ctx, from, nil)
	if err != nil {
		return workload{}, err
	}
	assigned, err := s.photos.PendingByPhotographer(ctx)
	if err != nil {
		return workload{}, err
	}
	return workload{pending: pending, completed: completed, assigned: assigned}, nil
}

func (s *service) windowStart() *time.Time {
	if s.window <= 0 {
		return nil
	}
	from := s.now().UTC().Add(-s.window)
	return &from
}

// assign gives one job to userID unless someone claimed it meanwhile.
func (s *service) assign(ctx context.Context, vehicleID, userID string) error {
	err := vehiclelock.With(ctx, s.locks, vehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.photos.WithTx(tx)
			record, err := records.Find(ctx, vehicleID)
			if err != nil || record == nil {
				return err
			}
			if record.Completed || record.PhotographerID != nil {
				return nil
			}
			return records.Update(ctx, record, map[string]any{
				"photographer_id": userID,
				"assigned_at":     s.now().UTC(),
			})
		})
	})
	return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "assign photo job")
}

// Stats reports completed jobs in [from, to) and currently queued jobs per
// photographer. Photographers without an allocation row are included when
// they hold work.
func (s *service) Stats(ctx context.Context, from, to *time.Time) ([]Stats, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	allocations, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocations")
	}
	completed, err := s.photos.CompletedByPhotographer(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed photos")
	}
	pending, err := s.photos.PendingByPhotographer(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending photos")
	}
	byUser := make(map[string]*Stats, len(allocations))
	out := make([]Stats, 0, len(allocations))
	for _, row := range allocations {
		byUser[row.UserID] = statsFor(row)
	}
	for userID := range completed {
		if _, ok := byUser[userID]; !ok {
			byUser[userID] = &Stats{UserID: userID}
		}
	}
	for userID := range pending {
		if _, ok := byUser[userID]; !ok {
			byUser[userID] = &Stats{UserID: userID}
		}
	}
	for userID, stat := range byUser {
		stat.Completed = completed[userID]
		stat.Pending = pending[userID]
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func statsFor(row models.PhotographerAllocation) *Stats {
	return &Stats{
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		Percentage:  row.Percentage,
		Active:      row.Active,
		Locked:      row.Locked,
	}
}
