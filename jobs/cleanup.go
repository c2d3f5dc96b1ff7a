package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/medledger-hq/medledger/internal/shared"
)

// IdempotencyCleaner prunes processed idempotency keys past retention.
type IdempotencyCleaner struct {
	logger    *slog.Logger
	store     *shared.IdempotencyStore
	retention time.Duration
}

func NewIdempotencyCleaner(logger *slog.Logger, store *shared.IdempotencyStore, retention time.Duration) *IdempotencyCleaner {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &IdempotencyCleaner{logger: logger, store: store, retention: retention}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, _ *asynq.Task) error {
	pruned, err := c.store.Cleanup(ctx, c.retention)
	if err != nil {
		c.logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	c.logger.Info("idempotency keys pruned",
		slog.Int64("pruned", pruned),
		slog.Duration("retention", c.retention))
	return nil
}
