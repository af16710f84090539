package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/printforge/fulfillment-api/pkg/config"
)

func newTestScheduleService(now time.Time) *ScheduleService {
	svc := NewScheduleService(config.FulfillmentConfig{})
	svc.now = func() time.Time { return now }
	return svc
}

func TestEstimateHourRange(t *testing.T) {
	svc := NewScheduleService(config.FulfillmentConfig{})

	est := svc.Estimate(100)
	assert.InDelta(t, 100.0/60, est.MinHours, 1e-9)
	assert.InDelta(t, 200.0/60, est.MaxHours, 1e-9)
	assert.Equal(t, "2-4 hours", est.Display)
	assert.InDelta(t, 2.5, est.StoredHours, 1e-9)
}

func TestEstimateDayRange(t *testing.T) {
	svc := NewScheduleService(config.FulfillmentConfig{})

	// 1200 garments: 20h min, 40h max; over the 20h working day threshold.
	est := svc.Estimate(1200)
	assert.InDelta(t, 20, est.MinHours, 1e-9)
	assert.InDelta(t, 40, est.MaxHours, 1e-9)
	assert.Equal(t, "1-2 day(s)", est.Display)
	assert.InDelta(t, 30, est.StoredHours, 1e-9)
}

func TestEstimateBoundaryStaysInHours(t *testing.T) {
	svc := NewScheduleService(config.FulfillmentConfig{})

	// 600 garments: max exactly equals the 20h working day, hour display.
	est := svc.Estimate(600)
	assert.Equal(t, "10-20 hours", est.Display)
	assert.InDelta(t, 15, est.StoredHours, 1e-9)
}

func TestEstimateZeroGarments(t *testing.T) {
	svc := NewScheduleService(config.FulfillmentConfig{})

	est := svc.Estimate(0)
	assert.Equal(t, "0-0 hours", est.Display)
	assert.Zero(t, est.StoredHours)
}

func TestCountdownOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(now)

	cd := svc.Countdown(now.Add(-time.Hour))
	assert.True(t, cd.Overdue)
	assert.Equal(t, "OVERDUE", cd.Display)

	// Exactly now counts as overdue.
	cd = svc.Countdown(now)
	assert.True(t, cd.Overdue)
}

func TestCountdownDaysAndHours(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(now)

	cd := svc.Countdown(now.Add(50*time.Hour + 30*time.Minute))
	assert.False(t, cd.Overdue)
	assert.False(t, cd.NearDue)
	assert.Equal(t, "2d 2h", cd.Display)
}

func TestCountdownHoursAndMinutes(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(now)

	cd := svc.Countdown(now.Add(5*time.Hour + 45*time.Minute))
	assert.False(t, cd.Overdue)
	assert.True(t, cd.NearDue)
	assert.Equal(t, "5h 45m", cd.Display)
}

func TestCountdownNearDueBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(now)

	// Exactly at the threshold is not yet near-due.
	cd := svc.Countdown(now.Add(24 * time.Hour))
	assert.False(t, cd.NearDue)
	assert.Equal(t, "1d 0h", cd.Display)

	cd = svc.Countdown(now.Add(23*time.Hour + 59*time.Minute))
	assert.True(t, cd.NearDue)
}
