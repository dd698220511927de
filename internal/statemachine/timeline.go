package statemachine

import (
	"math/rand/v2"
	"time"
)

const (
	// Resolution of a Postgres timestamp column.
	resolution = time.Microsecond
	// fallbackStep spaces transitions when the window cannot hold them.
	fallbackStep = time.Minute
)

// Timestamps returns n strictly increasing times inside (start, end). Each
// step and the tail after the last step get a random weight in [0.5, 1.5),
// so spacing is irregular. A window under a millisecond per step is split
// evenly at microsecond resolution instead.
//
// A window that cannot hold n+1 microseconds (including end at or before
// start) has no room for the steps: they are then spaced a minute apart
// from start and land after end, so callers must not assume the last
// transition precedes end in that case.
func Timestamps(rng *rand.Rand, start, end time.Time, n int) []time.Time {
	if n == 0 {
		return nil
	}
	start = start.Truncate(resolution)
	span := end.Sub(start)

	out := make([]time.Time, n)
	steps := time.Duration(n + 1)
	switch {
	case span < steps*resolution:
		for i := range out {
			out[i] = start.Add(time.Duration(i+1) * fallbackStep)
		}
		return out
	case span < steps*time.Millisecond:
		step := (span / steps).Truncate(resolution)
		for i := range out {
			out[i] = start.Add(time.Duration(i+1) * step)
		}
		return out
	}

	weights := make([]float64, n+1)
	var total float64
	for i := range weights {
		weights[i] = 0.5 + rng.Float64()
		total += weights[i]
	}

	var cum float64
	prev := start
	for i := 0; i < n; i++ {
		cum += weights[i]
		t := start.Add(time.Duration(float64(span) * cum / total)).Truncate(resolution)
		if !t.After(prev) {
			t = prev.Add(resolution)
		}
		out[i] = t
		prev = t
	}
	return out
}
