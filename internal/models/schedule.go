package models

import "time"

// DurationEstimate is the garment-volume based processing estimate.
// StoredHours is always the hour midpoint, even when Display is a day range.
type DurationEstimate struct {
	MinHours    float64 `json:"min_hours"`
	MaxHours    float64 `json:"max_hours"`
	StoredHours float64 `json:"stored_hours"`
	Display     string  `json:"display"`
}

// Countdown is the time-remaining view for a queued order. Overdue is
// terminal for display purposes but re-evaluated on every tick.
type Countdown struct {
	Overdue   bool          `json:"overdue"`
	NearDue   bool          `json:"near_due"`
	Remaining time.Duration `json:"-"`
	Display   string        `json:"display"`
}
