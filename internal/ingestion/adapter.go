package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/snapshots"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, events ...reactor.Event) error
}

// Archiver copies a committed snapshot to cold storage and returns its URI.
type Archiver interface {
	Archive(ctx context.Context, version int64, records []models.ScrapedRecord) (string, error)
}

// AdapterParams wires an Adapter.
type AdapterParams struct {
	Repo     *snapshots.Repository
	Tx       txRunner
	Source   Source
	Reactor  dispatcher
	Outbox   outbox.Emitter
	Lock     RunLock
	Archiver Archiver
	Config   config.IngestionConfig
	Metrics  *metrics.IngestionMetrics
	Logger   *logger.Logger
}

// Adapter folds a full listing into the scraped snapshot and drives the
// reactor with the per-vehicle diff.
type Adapter struct {
	repo     *snapshots.Repository
	tx       txRunner
	source   Source
	reactor  dispatcher
	outbox   outbox.Emitter
	lock     RunLock
	archiver Archiver
	cfg      config.IngestionConfig
	metrics  *metrics.IngestionMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// RunResult describes a committed run.
type RunResult struct {
	RunID      uuid.UUID `json:"run_id"`
	Version    int64     `json:"snapshot_version"`
	Records    int       `json:"record_count"`
	Skipped    int       `json:"skipped_count"`
	Added      []string  `json:"added"`
	Removed    []string  `json:"removed"`
	Changed    []string  `json:"changed"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
}

func NewAdapter(params AdapterParams) (*Adapter, error) {
	if params.Repo == nil {
		return nil, errors.New("snapshot repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Source == nil {
		return nil, errors.New("listing source required")
	}
	if params.Reactor == nil {
		return nil, errors.New("reactor required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	lock := params.Lock
	if lock == nil {
		lock = &LocalLock{}
	}
	return &Adapter{
		repo:     params.Repo,
		tx:       params.Tx,
		source:   params.Source,
		reactor:  params.Reactor,
		outbox:   params.Outbox,
		lock:     lock,
		archiver: params.Archiver,
		cfg:      params.Config,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run fetches the listing once and applies it. A second run while one is in
// flight is refused with INGESTION_IN_PROGRESS. A failed fetch, parse or
// apply leaves the previous snapshot untouched.
func (a *Adapter) Run(ctx context.Context, trigger enums.SnapshotTrigger, actor string) (*RunResult, error) {
	acquired, err := a.lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire ingestion lock")
	}
	if !acquired {
		a.metrics.IncRun("refused")
		return nil, pkgerrors.New(pkgerrors.CodeIngestionInProgress, "an ingestion run is already in progress")
	}
	defer func() {
		if err := a.lock.Release(context.Background()); err != nil {
			a.warn(ctx, "ingestion.lock_release_failed", err)
		}
	}()

	started := time.Now()
	version, err := a.repo.NextVersion(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate snapshot version")
	}
	run := &models.SnapshotRun{
		SnapshotVersion: version,
		Status:          enums.SnapshotRunRunning,
		Trigger:         trigger,
		StartedAt:       a.now(),
	}
	if err := a.repo.CreateRun(ctx, run); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ingestion run")
	}
	ctx = a.withFields(ctx, map[string]any{
		"run_id":           run.ID.String(),
		"snapshot_version": version,
		"trigger":          string(trigger),
	})

	records, skipped, err := a.fetch(ctx, version)
	if err != nil {
		return nil, a.fail(ctx, run, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch listing"))
	}

	var diff Diff
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var applyErr error
		diff, applyErr = a.apply(ctx, tx, run, records, skipped, actorOrSystem(actor))
		return applyErr
	})
	if err != nil {
		return nil, a.fail(ctx, run, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "apply snapshot"))
	}

	result := &RunResult{
		RunID:   run.ID,
		Version: version,
		Records: len(records),
		Skipped: skipped,
		Added:   ids(diff.Added),
		Removed: ids(diff.Removed),
		Changed: ids(diff.Changed),
	}
	if a.archiver != nil && a.cfg.ArchiveEnabled {
		uri, archiveErr := a.archiver.Archive(ctx, version, records)
		switch {
		case archiveErr != nil:
			a.warn(ctx, "ingestion.archive_failed", archiveErr)
		default:
			if err := a.repo.SetArchiveURI(ctx, run.ID, uri); err != nil {
				a.warn(ctx, "ingestion.archive_uri_failed", err)
			}
			result.ArchiveURI = uri
		}
	}

	a.metrics.ObserveDiff(len(diff.Added), len(diff.Removed), len(diff.Changed))
	a.metrics.IncRun("succeeded")
	if a.logg != nil {
		a.logg.Info(a.withFields(ctx, map[string]any{
			"records":     len(records),
			"skipped":     skipped,
			"added":       len(diff.Added),
			"removed":     len(diff.Removed),
			"changed":     len(diff.Changed),
			"duration_ms": time.Since(started).Milliseconds(),
		}), "ingestion.completed")
	}
	return result, nil
}

func (a *Adapter) fetch(ctx context.Context, version int64) ([]models.ScrapedRecord, int, error) {
	fetchCtx := ctx
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	listings, err := a.source.Fetch(fetchCtx)
	if err != nil {
		return nil, 0, err
	}
	return Normalize(listings, version, a.cfg)
}

// apply runs inside one transaction: write the candidate version, mark it
// current, propagate the diff and drop older versions.
func (a *Adapter) apply(ctx context.Context, tx *gorm.DB, run *models.SnapshotRun, records []models.ScrapedRecord, skipped int, actor string) (Diff, error) {
	repo := a.repo.WithTx(tx)
	previous, err := repo.CurrentRecords(ctx)
	if err != nil {
		return Diff{}, fmt.Errorf("load previous snapshot: %w", err)
	}
	diff := ComputeDiff(previous, records)

	if err := repo.InsertRecords(ctx, records); err != nil {
		return Diff{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := repo.FinishRun(ctx, run.ID, map[string]any{
		"status":        enums.SnapshotRunSucceeded,
		"record_count":  len(records),
		"added_count":   len(diff.Added),
		"removed_count": len(diff.Removed),
		"changed_count": len(diff.Changed),
		"skipped_count": skipped,
		"finished_at":   a.now(),
	}); err != nil {
		return Diff{}, fmt.Errorf("finish run: %w", err)
	}

	at := a.now()
	events := make([]reactor.Event, 0, len(diff.Added)+len(diff.Changed)+len(diff.Removed))
	for i := range diff.Added {
		events = append(events, a.event(reactor.EventSnapshotAdded, &diff.Added[i], actor, at))
	}
	for i := range diff.Changed {
		events = append(events, a.event(reactor.EventSnapshotChanged, &diff.Changed[i], actor, at))
	}
	for i := range diff.Removed {
		events = append(events, a.event(reactor.EventSnapshotRemoved, &diff.Removed[i], actor, at))
	}
	if err := a.reactor.Dispatch(ctx, tx, events...); err != nil {
		return Diff{}, err
	}

	if err := a.emitListingChanges(ctx, tx, run.SnapshotVersion, diff, actor); err != nil {
		return Diff{}, err
	}
	if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSnapshotIngested,
		AggregateType: enums.AggregateSnapshot,
		AggregateID:   run.ID.String(),
		Actor:         actor,
		Data: payloads.SnapshotIngestedEvent{
			RunID:           run.ID,
			SnapshotVersion: run.SnapshotVersion,
			RecordCount:     len(records),
			Added:           len(diff.Added),
			Removed:         len(diff.Removed),
			Changed:         len(diff.Changed),
		},
	}); err != nil {
		return Diff{}, err
	}

	if _, err := repo.PruneBefore(ctx, run.SnapshotVersion); err != nil {
		return Diff{}, fmt.Errorf("prune snapshots: %w", err)
	}
	return diff, nil
}

func (a *Adapter) emitListingChanges(ctx context.Context, tx *gorm.DB, version int64, diff Diff, actor string) error {
	for _, record := range diff.Added {
		if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVehicleListed,
			AggregateType: enums.AggregateVehicle,
			AggregateID:   record.VehicleID,
			Actor:         actor,
			Data: payloads.VehicleListedEvent{
				VehicleID:       record.VehicleID,
				SnapshotVersion: version,
				Available:       record.Available,
				Powertrain:      record.Powertrain,
			},
		}); err != nil {
			return err
		}
	}
	for _, record := range diff.Removed {
		retired, err := lifecycle.IsRetired(ctx, tx, record.VehicleID)
		if err != nil {
			return err
		}
		if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVehicleDelisted,
			AggregateType: enums.AggregateVehicle,
			AggregateID:   record.VehicleID,
			Actor:         actor,
			Data: payloads.VehicleDelistedEvent{
				VehicleID:       record.VehicleID,
				SnapshotVersion: version,
				Retired:         retired,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) event(typ reactor.EventType, record *models.ScrapedRecord, actor string, at time.Time) reactor.Event {
	return reactor.Event{
		Type:      typ,
		VehicleID: record.VehicleID,
		Actor:     actor,
		At:        at,
		Record:    record,
	}
}

// fail records a failed run outside the rolled back transaction.
func (a *Adapter) fail(ctx context.Context, run *models.SnapshotRun, cause error) error {
	msg := cause.Error()
	if err := a.repo.FinishRun(context.Background(), run.ID, map[string]any{
		"status": enums.SnapshotRunFailed,
		"error":  msg,
	}); err != nil {
		a.warn(ctx, "ingestion.run_status_failed", err)
	}
	a.metrics.IncRun("failed")
	if a.logg != nil {
		a.logg.Error(ctx, "ingestion.failed", cause)
	}
	return cause
}

// History lists recent runs, newest first.
func (a *Adapter) History(ctx context.Context, limit int) ([]models.SnapshotRun, error) {
	runs, err := a.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ingestion runs")
	}
	return runs, nil
}

func (a *Adapter) withFields(ctx context.Context, fields map[string]any) context.Context {
	if a.logg == nil {
		return ctx
	}
	return a.logg.WithFields(ctx, fields)
}

func (a *Adapter) warn(ctx context.Context, msg string, err error) {
	if a.logg == nil {
		return
	}
	a.logg.Warn(a.logg.WithFields(ctx, map[string]any{"error": err.Error()}), msg)
}

func ids(records []models.ScrapedRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.VehicleID)
	}
	return out
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return outbox.SystemActor
	}
	return actor
}
