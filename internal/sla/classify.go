package sla

import (
	"time"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// Thresholds control escalation level boundaries. WarningPercent is the
// policy-relative share of the total SLA window that puts a ticket on
// watch; CriticalMinutes is an absolute business-minute window for the
// critical warning stage. Both come from configuration, not constants.
type Thresholds struct {
	WarningPercent  int
	CriticalMinutes int
}

// Classification is the evaluator's verdict for one ticket.
type Classification struct {
	Level              domain.EscalationLevel
	BreachType         domain.BreachType
	Deadline           time.Time
	MinutesUntilBreach int
}

// Classify computes the escalation level for a ticket against its policy at
// the given instant. ok is false when the ticket carries no active deadline
// (no SLA tracking, or the relevant due was never stamped).
func Classify(ticket *domain.Ticket, policy *domain.SLAPolicy, now time.Time, thresholds Thresholds) (Classification, bool) {
	deadline, breachType, ok := ticket.ActiveDeadline()
	if !ok {
		return Classification{}, false
	}

	remaining := MinutesRemaining(now, deadline, policy)
	result := Classification{
		BreachType:         breachType,
		Deadline:           deadline,
		MinutesUntilBreach: remaining,
	}

	window := policy.ResponseTimeMinutes
	if breachType == domain.BreachTypeResolution {
		window = policy.ResolutionTimeMinutes
	}
	warningFloor := window * thresholds.WarningPercent / 100

	switch {
	case remaining < 0:
		result.Level = domain.EscalationLevelBreached
	case remaining <= thresholds.CriticalMinutes:
		result.Level = domain.EscalationLevelCritical
	case remaining <= warningFloor:
		result.Level = domain.EscalationLevelWatch
	default:
		result.Level = domain.EscalationLevelSafe
	}
	return result, true
}
