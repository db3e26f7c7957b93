package migration

import (
	"sync/atomic"
	"time"
)

// Progress is incremented once per attempted item. Implementations must be
// safe for concurrent use.
type Progress interface {
	Incr()
}

// Counter is an atomic Progress.
type Counter struct {
	n atomic.Int64
}

// Incr adds one.
func (c *Counter) Incr() {
	c.n.Add(1)
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.n.Load()
}

type multiProgress []Progress

func (m multiProgress) Incr() {
	for _, p := range m {
		p.Incr()
	}
}

// MultiProgress fans increments out to every non-nil p.
func MultiProgress(ps ...Progress) Progress {
	var out multiProgress
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Outcome is how a marked item ended.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeAlreadyFlagged Outcome = "already_flagged"
	OutcomeSkipped        Outcome = "skipped_inconsistent"
	OutcomeFailed         Outcome = "failed"
)

// Metrics receives migration measurements.
type Metrics interface {
	RecordOutcome(Outcome)
	ObservePage(items int, duration time.Duration)
	SetTotal(total int64)
}

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(Outcome) {}
func (nopMetrics) ObservePage(int, time.Duration) {}
func (nopMetrics) SetTotal(int64) {}
