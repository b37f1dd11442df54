package shared

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ReferenceGenerator supplies document references and transaction dates.
// Services never call time.Now directly; the generator is injected so tests
// can pin the clock.
type ReferenceGenerator interface {
	Next(prefix string) string
	Now() time.Time
}

type referenceGenerator struct {
	now func() time.Time
	seq atomic.Uint64
}

// NewReferenceGenerator returns a generator backed by the given clock.
// A nil clock falls back to time.Now in UTC.
func NewReferenceGenerator(now func() time.Time) ReferenceGenerator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &referenceGenerator{now: now}
}

// Next produces references such as "ORD-20260829-000042". Uniqueness within a
// process comes from the sequence; the database's unique constraint on the
// reference column is the durable guarantee.
func (g *referenceGenerator) Next(prefix string) string {
	n := g.seq.Add(1)
	return fmt.Sprintf("%s-%s-%06d", prefix, g.now().Format("20060102"), n)
}

func (g *referenceGenerator) Now() time.Time {
	return g.now()
}
