package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/comptoir-erp/comptoir-erp/internal/generate"
)

// PendingScanJob generates missing ledger entries for a company's finalized
// invoices and recorded payments.
type PendingScanJob struct {
	Hooks  *generate.Hooks
	Source generate.PendingSource
	Logger *slog.Logger
	clock  func() time.Time
}

// NewPendingScanJob initialises the pending scan handler.
func NewPendingScanJob(hooks *generate.Hooks, source generate.PendingSource, logger *slog.Logger) *PendingScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingScanJob{
		Hooks:  hooks,
		Source: source,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the pending scan.
func (j *PendingScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Hooks == nil || j.Source == nil {
		return errors.New("pending scan: handler not configured")
	}
	var payload PendingScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 100
	}

	start := j.clock()
	logger := j.Logger
	if payload.CompanyID == "" {
		// Scheduled sweeps carry no company and cover every company with
		// pending documents.
		logger.Info("starting pending entry scan", slog.String("scope", "all"), slog.Int("limit", payload.Limit))
		generated, err := j.Hooks.GeneratePendingAll(ctx, j.Source, payload.Limit)
		if err != nil {
			logger.Error("pending entry scan failed", slog.Any("error", err))
			return err
		}
		logger.Info("completed pending entry scan",
			slog.Int("generated", generated),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}

	companyID, err := uuid.Parse(payload.CompanyID)
	if err != nil {
		return asynq.SkipRetry
	}
	logger = logger.With(slog.String("company_id", payload.CompanyID))
	logger.Info("starting pending entry scan", slog.Int("limit", payload.Limit))

	generated, err := j.Hooks.GeneratePending(ctx, j.Source, companyID, payload.Limit)
	if err != nil {
		logger.Error("pending entry scan failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed pending entry scan",
		slog.Int("generated", generated),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
