package service

import (
	"fmt"
	"math"
	"time"

	"github.com/printforge/fulfillment-api/internal/models"
	"github.com/printforge/fulfillment-api/pkg/config"
)

// ScheduleService computes duration estimates from garment volume and renders
// countdown state for queued orders. Pure computations, no storage access.
type ScheduleService struct {
	cfg config.FulfillmentConfig
	now func() time.Time
}

// NewScheduleService constructs the schedule service, filling in pacing
// defaults for zero-valued config.
func NewScheduleService(cfg config.FulfillmentConfig) *ScheduleService {
	if cfg.MinMinutesPerGarment <= 0 {
		cfg.MinMinutesPerGarment = 1
	}
	if cfg.MaxMinutesPerGarment <= 0 {
		cfg.MaxMinutesPerGarment = 2
	}
	if cfg.WorkingDayHours <= 0 {
		cfg.WorkingDayHours = 20
	}
	if cfg.NearDueThreshold <= 0 {
		cfg.NearDueThreshold = 24 * time.Hour
	}
	return &ScheduleService{cfg: cfg, now: time.Now}
}

// Estimate derives the processing estimate for a garment volume. When the
// upper bound fits within one working day the display is an hour range,
// otherwise a whole-working-day range. The stored value is always the hour
// midpoint so the persisted field stays comparable across both branches.
func (s *ScheduleService) Estimate(totalGarments int) models.DurationEstimate {
	if totalGarments < 0 {
		totalGarments = 0
	}

	minHours := float64(totalGarments*s.cfg.MinMinutesPerGarment) / 60
	maxHours := float64(totalGarments*s.cfg.MaxMinutesPerGarment) / 60
	est := models.DurationEstimate{
		MinHours:    minHours,
		MaxHours:    maxHours,
		StoredHours: (minHours + maxHours) / 2,
	}

	workingDay := float64(s.cfg.WorkingDayHours)
	if maxHours <= workingDay {
		est.Display = fmt.Sprintf("%d-%d hours", int(math.Ceil(minHours)), int(math.Ceil(maxHours)))
	} else {
		est.Display = fmt.Sprintf("%d-%d day(s)", int(math.Ceil(minHours/workingDay)), int(math.Ceil(maxHours/workingDay)))
	}
	return est
}

// Countdown renders remaining time until the scheduled date. Overdue once the
// date is in the past; re-evaluated against the clock on every call rather
// than cached at schedule time.
func (s *ScheduleService) Countdown(scheduledDate time.Time) models.Countdown {
	now := s.now()
	if !scheduledDate.After(now) {
		return models.Countdown{Overdue: true, Display: "OVERDUE"}
	}

	remaining := scheduledDate.Sub(now)
	cd := models.Countdown{
		Remaining: remaining,
		NearDue:   remaining < s.cfg.NearDueThreshold,
	}
	if remaining >= 24*time.Hour {
		days := int(remaining.Hours()) / 24
		hours := int(remaining.Hours()) % 24
		cd.Display = fmt.Sprintf("%dd %dh", days, hours)
	} else {
		hours := int(remaining.Hours())
		minutes := int(remaining.Minutes()) % 60
		cd.Display = fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return cd
}
