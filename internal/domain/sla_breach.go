package domain

import "time"

// BreachType distinguishes which deadline was missed.
type BreachType string

const (
	BreachTypeResponse   BreachType = "response"
	BreachTypeResolution BreachType = "resolution"
)

// SLABreach is an append-only audit row. At most one row exists per
// (ticket, breach type); ActualTime is written once and never changed
// afterwards.
type SLABreach struct {
	ID                    int64
	TicketID              string
	SLAPolicyID           int64
	BreachType            BreachType
	TargetTime            time.Time
	ActualTime            *time.Time
	BreachDurationMinutes *int
	CreatedAt             time.Time
}
