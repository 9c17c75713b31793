package domain

import "time"

// TicketType enumerates the supported ITSM process types.
type TicketType string

const (
	TicketTypeRequest  TicketType = "request"
	TicketTypeIncident TicketType = "incident"
	TicketTypeProblem  TicketType = "problem"
	TicketTypeChange   TicketType = "change"
)

// NumberPrefix returns the three-letter prefix used in ticket numbers.
func (t TicketType) NumberPrefix() string {
	switch t {
	case TicketTypeRequest:
		return "REQ"
	case TicketTypeIncident:
		return "INC"
	case TicketTypeProblem:
		return "PRB"
	case TicketTypeChange:
		return "CHG"
	}
	return "TKT"
}

// Valid reports whether the type is one of the supported process types.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeRequest, TicketTypeIncident, TicketTypeProblem, TicketTypeChange:
		return true
	}
	return false
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusOnHold     TicketStatus = "on_hold"
	TicketStatusApproved   TicketStatus = "approved"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// Terminal reports whether the status ends the lifecycle.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled
}

// RequiresAssignee reports whether the status is only consistent with a
// non-null assignee. A ticket in one of these states with nobody assigned
// must fall back to "new".
func (s TicketStatus) RequiresAssignee() bool {
	switch s {
	case TicketStatusAssigned, TicketStatusInProgress, TicketStatusPending, TicketStatusResolved:
		return true
	}
	return false
}

// TicketPriority is the shared domain for priority, impact and urgency.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// Valid reports whether the value is in the priority domain.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for ITSM work items. The lifecycle fields
// (Status, WorkflowStep, AssignedTo, AssignedGroup) are mutated only
// through the lifecycle service; SLA due fields are written once by the
// SLA timer and the breach flag is raised, sticky, by the evaluator.
type Ticket struct {
	ID           string
	TicketNumber string
	Type         TicketType
	Status       TicketStatus
	Priority     TicketPriority
	Impact       TicketPriority
	Urgency      TicketPriority
	Category     string

	Title       string
	Description string
	RequesterID string

	WorkflowStep  int
	AssignedTo    *string
	AssignedGroup *string

	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time

	SLAPolicyID      *int64
	SLAResponseDue   *time.Time
	SLAResolutionDue *time.Time
	SLABreached      bool

	// Optimistic concurrency token; bumped on every mutator write.
	Version int64

	// Problem management extensions.
	RootCause  *string
	Workaround *string
	KnownError bool

	// Change management extensions.
	ChangeType         *string
	RiskLevel          *string
	ApprovalStatus     *string
	ImplementationPlan *string
	RollbackPlan       *string
	ScheduledStart     *time.Time
	ScheduledEnd       *time.Time
}

// Assigned reports whether anyone is assigned to the ticket.
func (t *Ticket) Assigned() bool {
	return t.AssignedTo != nil
}

// Open reports whether the ticket still counts against SLA deadlines.
func (t *Ticket) Open() bool {
	switch t.Status {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return false
	}
	return true
}

// ActiveDeadline returns the deadline the escalation evaluator should
// measure against: the response due while no first response has been
// recorded, the resolution due afterwards. ok is false when the relevant
// deadline was never stamped (ticket without SLA tracking).
func (t *Ticket) ActiveDeadline() (deadline time.Time, breachType BreachType, ok bool) {
	if t.FirstResponseAt == nil {
		if t.SLAResponseDue == nil {
			return time.Time{}, "", false
		}
		return *t.SLAResponseDue, BreachTypeResponse, true
	}
	if t.SLAResolutionDue == nil {
		return time.Time{}, "", false
	}
	return *t.SLAResolutionDue, BreachTypeResolution, true
}
