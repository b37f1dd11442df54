package production

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the production job lifecycle.
type Status string

const (
	StatusPlanned            Status = "PLANNED"
	StatusMaterialsAllocated Status = "MATERIALS_ALLOCATED"
	StatusInProgress         Status = "IN_PROGRESS"
	StatusQualityCheck       Status = "QUALITY_CHECK"
	StatusCompleted          Status = "COMPLETED"
	StatusCancelled          Status = "CANCELLED"
)

// transitions is the explicit state table: any pair not listed is rejected.
var transitions = map[Status][]Status{
	StatusPlanned:            {StatusMaterialsAllocated, StatusCancelled},
	StatusMaterialsAllocated: {StatusInProgress, StatusCancelled},
	StatusInProgress:         {StatusQualityCheck, StatusCancelled},
	StatusQualityCheck:       {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Job is one production run for a single order item (a rug to be tufted).
type Job struct {
	ID          int64
	Reference   string
	OrderItemID int64
	Status      Status
	AssigneeID  *int64
	PlannedEnd  *time.Time
	ActualEnd   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	BOMLines    []BOMLine
}

// BOMLine is a planned material requirement. Allocation reserves these
// quantities as a planning step; no stock moves until consumption is
// recorded.
type BOMLine struct {
	ID         int64
	JobID      int64
	ItemID     int64
	PlannedQty decimal.Decimal
	Note       string
}

// Consumption is an actual recorded material draw. Each row keeps the journal
// entry that carried its cost into WIP so corrections can reverse it exactly.
type Consumption struct {
	ID         int64
	JobID      int64
	ItemID     int64
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
	Cost       decimal.Decimal
	EntryID    int64
	RecordedAt time.Time
}

// FinishedProduct is created when a job completes; ProductionCost is the
// roll-up of all consumption costs at completion time.
type FinishedProduct struct {
	ID             int64
	JobID          int64
	OrderItemID    int64
	ProductionCost decimal.Decimal
	CompletedAt    time.Time
}

var (
	// ErrNotFound indicates a missing job or consumption.
	ErrNotFound = errors.New("production: not found")
	// ErrInvalidTransition occurs when an action violates the status table.
	ErrInvalidTransition = errors.New("production: invalid state transition")
	// ErrNoBOMLines rejects allocating a job without planned materials.
	ErrNoBOMLines = errors.New("production: job has no bom lines")
	// ErrJobClosed rejects consumption against terminal jobs.
	ErrJobClosed = errors.New("production: job is in a terminal state")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("production: invalid input")
)
