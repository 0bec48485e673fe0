package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
)

const (
	outboxRetentionDays    = 30
	outboxTerminalAttempts = 10

	outboxRetentionJobName = "outbox-retention"
	outboxBacklogJobName   = "outbox-backlog"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// outboxStore is satisfied by *outbox.Repository.
type outboxStore interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
	CountTerminal(tx *gorm.DB, terminalAttempts int) (int64, error)
}

// OutboxJobParams configure the outbox maintenance jobs. TerminalAttempts
// must match the publisher's max attempts so both agree on which rows are
// dead.
type OutboxJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repository       outboxStore
	Metrics          *metrics.CronJobMetrics
	RetentionDays    int
	TerminalAttempts int
}

func (p OutboxJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.DB == nil {
		return fmt.Errorf("db runner required")
	}
	if p.Repository == nil {
		return fmt.Errorf("outbox repository required")
	}
	return nil
}

func (p OutboxJobParams) terminalAttempts() int {
	if p.TerminalAttempts <= 0 {
		return outboxTerminalAttempts
	}
	return p.TerminalAttempts
}

// NewOutboxRetentionJob deletes published and dead outbox rows older than
// the retention window. Pending rows are never touched.
func NewOutboxRetentionJob(params OutboxJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		metrics:          params.Metrics,
		retention:        retention,
		terminalAttempts: params.terminalAttempts(),
		now:              time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg             *logger.Logger
	db               txRunner
	repo             outboxStore
	metrics          *metrics.CronJobMetrics
	retention        int
	terminalAttempts int
	now              func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteSettledBefore(tx, cutoff, j.terminalAttempts)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.metrics.AddRows(j.Name(), deleted)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}

// NewOutboxBacklogJob reports unpublished rows that exhausted their publish
// attempts so operators can replay or discard them before retention does.
func NewOutboxBacklogJob(params OutboxJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &outboxBacklogJob{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		metrics:          params.Metrics,
		terminalAttempts: params.terminalAttempts(),
	}, nil
}

type outboxBacklogJob struct {
	logg             *logger.Logger
	db               txRunner
	repo             outboxStore
	metrics          *metrics.CronJobMetrics
	terminalAttempts int
}

func (j *outboxBacklogJob) Name() string { return outboxBacklogJobName }

func (j *outboxBacklogJob) Run(ctx context.Context) error {
	var dead int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := j.repo.CountTerminal(tx, j.terminalAttempts)
		dead = count
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox backlog: %w", err)
	}
	j.metrics.AddRows(j.Name(), dead)
	logCtx := j.logg.WithField(ctx, "dead_events", dead)
	if dead > 0 {
		j.logg.Warn(logCtx, "outbox has events that exhausted publish attempts")
		return nil
	}
	j.logg.Info(logCtx, "outbox backlog clear")
	return nil
}
