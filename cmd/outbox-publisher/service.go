package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackTimeout     = 15 * time.Second
	fallbackMaxAttempts = 10
	maxIdleBackoff      = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond

	// guardName scopes publish marks so a second publisher deployment keeps
	// its own dedup history.
	guardName = "outbox-publisher"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

// publishGuard remembers events already shipped so a mark that rolled back
// does not republish them on the next poll.
type publishGuard interface {
	Published(ctx context.Context, publisher string, eventID uuid.UUID) (bool, error)
	MarkPublished(ctx context.Context, publisher string, eventID uuid.UUID) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Broker     broker
	Repository outboxRepository
	Registry   registryResolver
	DeadLetter dlqRepository
	Guard      publishGuard
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox_events to Pub/Sub. Each poll claims a batch inside
// one transaction and settles every row before committing.
type Service struct {
	logg       *logger.Logger
	db         dbClient
	broker     broker
	repo       outboxRepository
	registry   registryResolver
	deadLetter dlqRepository
	guard      publishGuard
	metrics    *metrics.OutboxMetrics

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("broker is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DeadLetter == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:           params.Logger,
		db:             params.DB,
		broker:         params.Broker,
		repo:           params.Repository,
		registry:       params.Registry,
		deadLetter:     params.DeadLetter,
		guard:          params.Guard,
		metrics:        params.Metrics,
		batchSize:      positiveOr(cfg.BatchSize, fallbackBatchSize),
		maxAttempts:    positiveOr(cfg.MaxAttempts, fallbackMaxAttempts),
		pollInterval:   durationOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, fallbackPoll),
		publishTimeout: durationOr(cfg.PublishTimeout, fallbackTimeout),
		now:            time.Now,
	}, nil
}

// Run polls until ctx is canceled. A full batch polls again immediately; an
// empty one waits a jittered interval; a failed one backs off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		report, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case report.claimed >= s.batchSize:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleep(ctx, jittered(wait)); err != nil {
			return err
		}
	}
}

func (s *Service) checkDependencies(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.broker.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
