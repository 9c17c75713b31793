package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/itsm-core/internal/domain"
)

func weekdayPolicy() *domain.SLAPolicy {
	return &domain.SLAPolicy{
		ID:                    1,
		Name:                  "standard",
		ResponseTimeMinutes:   60,
		ResolutionTimeMinutes: 480,
		BusinessHoursOnly:     true,
		BusinessStart:         "09:00",
		BusinessEnd:           "17:00",
		BusinessDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		IsActive: true,
	}
}

func wallClockPolicy() *domain.SLAPolicy {
	p := weekdayPolicy()
	p.BusinessHoursOnly = false
	return p
}

// 2026-03-02 is a Monday.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestAddBusinessMinutesWallClock(t *testing.T) {
	start := mondayAt(10, 0)
	got := AddBusinessMinutes(start, 240, wallClockPolicy())
	assert.Equal(t, start.Add(4*time.Hour), got)
}

func TestAddBusinessMinutesWithinWindow(t *testing.T) {
	got := AddBusinessMinutes(mondayAt(10, 0), 120, weekdayPolicy())
	assert.Equal(t, mondayAt(12, 0), got)
}

func TestAddBusinessMinutesSpansWeekend(t *testing.T) {
	// Friday 16:00 plus 120 business minutes: one hour to Friday close,
	// the second hour after Monday open.
	friday := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	got := AddBusinessMinutes(friday, 120, weekdayPolicy())
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), got)
}

func TestAddBusinessMinutesStartOutsideHours(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		minutes int
		want    time.Time
	}{
		{
			name:    "before open snaps to open",
			start:   mondayAt(6, 30),
			minutes: 30,
			want:    mondayAt(9, 30),
		},
		{
			name:    "after close rolls to next day",
			start:   mondayAt(18, 0),
			minutes: 30,
			want:    time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC),
		},
		{
			name:    "saturday rolls to monday",
			start:   time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC),
			minutes: 15,
			want:    time.Date(2026, 3, 9, 9, 15, 0, 0, time.UTC),
		},
		{
			name:    "zero budget outside hours still snaps forward",
			start:   mondayAt(18, 0),
			minutes: 0,
			want:    time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AddBusinessMinutes(tc.start, tc.minutes, weekdayPolicy())
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAddBusinessMinutesMultiDayBudget(t *testing.T) {
	// 480-minute days: 1200 minutes from Monday 09:00 is two full days
	// plus 240 minutes on Wednesday.
	got := AddBusinessMinutes(mondayAt(9, 0), 1200, weekdayPolicy())
	assert.Equal(t, time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC), got)
}

func TestMinutesRemainingRoundTrip(t *testing.T) {
	policy := weekdayPolicy()
	starts := []time.Time{
		mondayAt(9, 0),
		mondayAt(16, 45),
		time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC), // Friday afternoon
		time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), // Saturday
	}
	budgets := []int{1, 30, 120, 480, 1000}

	for _, start := range starts {
		for _, budget := range budgets {
			deadline := AddBusinessMinutes(start, budget, policy)
			base := nextOpen(start, policy)
			require.Equal(t, budget, MinutesRemaining(base, deadline, policy),
				"start=%s budget=%d", start, budget)
		}
	}
}

func TestMinutesRemainingOverdue(t *testing.T) {
	policy := weekdayPolicy()
	deadline := mondayAt(10, 0)

	got := MinutesRemaining(mondayAt(11, 30), deadline, policy)
	assert.Equal(t, -90, got)
}

func TestMinutesRemainingOverdueAcrossWeekend(t *testing.T) {
	policy := weekdayPolicy()
	// Deadline Friday 16:00, now Monday 10:00: one overdue hour Friday
	// plus one Monday, weekend contributes nothing.
	deadline := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, -120, MinutesRemaining(now, deadline, policy))
}

func TestUnusableCalendarFallsBackToWallClock(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.SLAPolicy)
	}{
		{"no business days", func(p *domain.SLAPolicy) { p.BusinessDays = nil }},
		{"zero width window", func(p *domain.SLAPolicy) { p.BusinessEnd = p.BusinessStart }},
		{"inverted window", func(p *domain.SLAPolicy) { p.BusinessStart, p.BusinessEnd = "17:00", "09:00" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			policy := weekdayPolicy()
			tc.mutate(policy)
			start := mondayAt(10, 0)

			// The window walk must terminate even though no window in
			// this calendar can ever accumulate a minute.
			type result struct {
				added     time.Time
				remaining int
			}
			done := make(chan result, 1)
			go func() {
				added := AddBusinessMinutes(start, 60, policy)
				done <- result{added, MinutesRemaining(start, added, policy)}
			}()

			select {
			case got := <-done:
				assert.Equal(t, start.Add(time.Hour), got.added)
				assert.Equal(t, 60, got.remaining)
			case <-time.After(2 * time.Second):
				t.Fatal("calendar walk did not terminate")
			}
		})
	}
}

func TestMinutesRemainingWallClock(t *testing.T) {
	policy := wallClockPolicy()
	now := mondayAt(10, 0)
	assert.Equal(t, 90, MinutesRemaining(now, now.Add(90*time.Minute), policy))
	assert.Equal(t, -45, MinutesRemaining(now, now.Add(-45*time.Minute), policy))
}
