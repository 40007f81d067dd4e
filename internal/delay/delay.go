// Package delay computes realized arrival delays for settlement by
// comparing a journey's scheduled arrival against the observed one
// reported by the train-tracking service.
package delay

import (
	"time"
)

// Calculator converts scheduled/observed arrival instants into whole
// delay minutes.
type Calculator struct {
	guard time.Duration
}

// NewCalculator creates a calculator. A zero guard falls back to 4
// hours.
func NewCalculator(guard time.Duration) *Calculator {
	if guard == 0 {
		guard = 4 * time.Hour
	}
	return &Calculator{guard: guard}
}

// Minutes returns the delay between the scheduled and observed arrival
// in whole minutes, truncated toward zero and never negative.
//
// Tracking data carries clock times without a date, so a train that
// rolls past midnight can report an observed arrival that appears to
// precede the schedule by many hours. An observed arrival earlier than
// the schedule by more than the guard window is treated as next-day
// and corrected by 24h; within the guard it is a genuinely early train
// and the delay clamps to zero.
func (c *Calculator) Minutes(scheduled, observed time.Time) int64 {
	if observed.Before(scheduled.Add(-c.guard)) {
		observed = observed.Add(24 * time.Hour)
	}

	minutes := observed.Sub(scheduled).Milliseconds() / 60000
	if minutes < 0 {
		return 0
	}
	return minutes
}
