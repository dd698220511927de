package domain

import "sync/atomic"

// Outcome is the result of seeding one entity.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeExisting
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeExisting:
		return "existing"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Tally aggregates per-entity outcomes. It is safe for concurrent use.
type Tally struct {
	inserted atomic.Int64
	existing atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

// Record counts one outcome.
func (t *Tally) Record(o Outcome) {
	switch o {
	case OutcomeInserted:
		t.inserted.Add(1)
	case OutcomeExisting:
		t.existing.Add(1)
	case OutcomeSkipped:
		t.skipped.Add(1)
	default:
		t.failed.Add(1)
	}
}

// Counts is a point-in-time copy of a Tally.
type Counts struct {
	Inserted int64 `json:"inserted"`
	Existing int64 `json:"existing"`
	Skipped  int64 `json:"skipped"`
	Failed   int64 `json:"failed"`
}

// Total returns the number of entities seen.
func (c Counts) Total() int64 {
	return c.Inserted + c.Existing + c.Skipped + c.Failed
}

// Snapshot returns the current counts.
func (t *Tally) Snapshot() Counts {
	return Counts{
		Inserted: t.inserted.Load(),
		Existing: t.existing.Load(),
		Skipped:  t.skipped.Load(),
		Failed:   t.failed.Load(),
	}
}
