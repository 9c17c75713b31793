// Package sla implements the business-hours calendar, policy resolution
// and deadline stamping for SLA tracking. Everything here is pure: callers
// supply the clock and the policies.
package sla

import (
	"time"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// AddBusinessMinutes walks forward from start until the given minute budget
// has elapsed inside the policy's business windows and returns the instant
// reached. With BusinessHoursOnly disabled it is a plain wall-clock add.
//
// A start outside business hours is first fast-forwarded to the next window
// open; a zero budget therefore returns start itself only when start is
// already inside a window.
func AddBusinessMinutes(start time.Time, minutes int, policy *domain.SLAPolicy) time.Time {
	if !policy.BusinessHoursOnly || !calendarUsable(policy) {
		return start.Add(time.Duration(minutes) * time.Minute)
	}

	budget := minutes
	cur := start
	for {
		cur = nextOpen(cur, policy)
		_, closeAt := windowFor(cur, policy)
		available := int(closeAt.Sub(cur) / time.Minute)
		if budget <= available {
			return cur.Add(time.Duration(budget) * time.Minute)
		}
		budget -= available
		cur = closeAt
	}
}

// MinutesRemaining returns the signed number of business minutes between
// now and deadline; negative values mean the deadline has passed. It uses
// the same window-skipping walk as AddBusinessMinutes so the two round-trip.
func MinutesRemaining(now, deadline time.Time, policy *domain.SLAPolicy) int {
	if !policy.BusinessHoursOnly || !calendarUsable(policy) {
		return int(deadline.Sub(now) / time.Minute)
	}
	if now.After(deadline) {
		return -businessMinutesBetween(deadline, now, policy)
	}
	return businessMinutesBetween(now, deadline, policy)
}

// calendarUsable reports whether the policy calendar can accumulate
// minutes at all. The window walks below terminate only when at least one
// business day has a window of positive width; a policy row without one is
// measured on the wall clock instead.
func calendarUsable(policy *domain.SLAPolicy) bool {
	if len(policy.BusinessDays) == 0 {
		return false
	}
	openMinute, closeMinute := policy.BusinessWindow()
	return closeMinute > openMinute
}

// businessMinutesBetween counts business minutes from a to b, a <= b.
func businessMinutesBetween(a, b time.Time, policy *domain.SLAPolicy) int {
	total := 0
	cur := a
	for cur.Before(b) {
		cur = nextOpen(cur, policy)
		if !cur.Before(b) {
			break
		}
		_, closeAt := windowFor(cur, policy)
		end := closeAt
		if b.Before(end) {
			end = b
		}
		total += int(end.Sub(cur) / time.Minute)
		cur = closeAt
	}
	return total
}

// nextOpen returns t when t is inside a business window, otherwise the
// opening instant of the next window on or after t.
func nextOpen(t time.Time, policy *domain.SLAPolicy) time.Time {
	cur := t
	for {
		openAt, closeAt := windowFor(cur, policy)
		if policy.IsBusinessDay(cur.Weekday()) && cur.Before(closeAt) {
			if cur.Before(openAt) {
				return openAt
			}
			return cur
		}
		cur = startOfNextDay(cur)
	}
}

// windowFor returns the business window boundaries on t's calendar day.
func windowFor(t time.Time, policy *domain.SLAPolicy) (openAt, closeAt time.Time) {
	openMinute, closeMinute := policy.BusinessWindow()
	year, month, day := t.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	openAt = midnight.Add(time.Duration(openMinute) * time.Minute)
	closeAt = midnight.Add(time.Duration(closeMinute) * time.Minute)
	return openAt, closeAt
}

func startOfNextDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
