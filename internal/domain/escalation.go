package domain

import "time"

// EscalationLevel is the discrete severity stage derived from proximity to
// an SLA deadline.
type EscalationLevel int

const (
	EscalationLevelSafe     EscalationLevel = 0
	EscalationLevelWatch    EscalationLevel = 1
	EscalationLevelCritical EscalationLevel = 2
	EscalationLevelBreached EscalationLevel = 3
)

func (l EscalationLevel) String() string {
	switch l {
	case EscalationLevelSafe:
		return "safe"
	case EscalationLevelWatch:
		return "watch"
	case EscalationLevelCritical:
		return "critical"
	case EscalationLevelBreached:
		return "breached"
	}
	return "unknown"
}

// EscalationState records the last level a ticket was notified at. It is
// the serialization point for the evaluator: the level only ever moves up,
// via compare-and-set, so overlapping runs cannot double-notify.
type EscalationState struct {
	TicketID          string
	LastLevelNotified EscalationLevel
	LastNotifiedAt    *time.Time
}
