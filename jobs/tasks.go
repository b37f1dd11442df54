package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes account balances from posted lines and
	// reports drift against the stored running balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReorderScan flags inventory items at or below their reorder point.
	TaskReorderScan = "inventory:reorder_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewReorderScanTask constructs an Asynq task.
func NewReorderScanTask() *asynq.Task {
	return asynq.NewTask(TaskReorderScan, nil)
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
