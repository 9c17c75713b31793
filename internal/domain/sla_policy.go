package domain

import (
	"strconv"
	"strings"
	"time"
)

// SLAPolicy defines response/resolution targets and the business-hours
// calendar they are measured against. Match condition fields are nullable;
// nil means "matches any". Policies are read-only to the core: once a
// ticket's deadlines are stamped, later policy edits never re-stamp them.
type SLAPolicy struct {
	ID   int64
	Name string

	TicketType *TicketType
	Priority   *TicketPriority
	Impact     *TicketPriority
	Urgency    *TicketPriority
	Category   *string

	ResponseTimeMinutes   int
	ResolutionTimeMinutes int

	BusinessHoursOnly bool
	BusinessStart     string // HH:MM
	BusinessEnd       string // HH:MM
	BusinessDays      []time.Weekday

	IsActive  bool
	CreatedAt time.Time
}

// Matches reports whether every non-null condition equals the ticket's
// corresponding field.
func (p *SLAPolicy) Matches(t *Ticket) bool {
	if p.TicketType != nil && *p.TicketType != t.Type {
		return false
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		return false
	}
	if p.Impact != nil && *p.Impact != t.Impact {
		return false
	}
	if p.Urgency != nil && *p.Urgency != t.Urgency {
		return false
	}
	if p.Category != nil && !strings.EqualFold(*p.Category, t.Category) {
		return false
	}
	return true
}

// Specificity counts non-null match conditions; the resolver prefers the
// highest value.
func (p *SLAPolicy) Specificity() int {
	count := 0
	if p.TicketType != nil {
		count++
	}
	if p.Priority != nil {
		count++
	}
	if p.Impact != nil {
		count++
	}
	if p.Urgency != nil {
		count++
	}
	if p.Category != nil {
		count++
	}
	return count
}

// IsBusinessDay reports whether the weekday is part of the policy calendar.
func (p *SLAPolicy) IsBusinessDay(day time.Weekday) bool {
	for _, d := range p.BusinessDays {
		if d == day {
			return true
		}
	}
	return false
}

// BusinessWindow returns the daily window as minutes after midnight.
// Malformed clock strings fall back to 09:00-17:00.
func (p *SLAPolicy) BusinessWindow() (openMinute, closeMinute int) {
	openMinute, ok := parseClock(p.BusinessStart)
	if !ok {
		openMinute = 9 * 60
	}
	closeMinute, ok = parseClock(p.BusinessEnd)
	if !ok {
		closeMinute = 17 * 60
	}
	return openMinute, closeMinute
}

func parseClock(value string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
