package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// NewIdempotencyCleanupHandler returns a handler that prunes idempotency
// keys older than 24 hours.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := store.Cleanup(ctx, 24*time.Hour); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned")
		return nil
	}
}
