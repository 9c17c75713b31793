package events

import (
	"time"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketReopened      EventType = "ticket_reopened"
	EventSLAEscalation       EventType = "sla_escalation"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	TicketType   domain.TicketType     `json:"ticket_type"`
	Priority     domain.TicketPriority `json:"priority"`
	SLATracked   bool                  `json:"sla_tracked"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	WorkflowStep int                 `json:"workflow_step"`
	StepName     string              `json:"step_name,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedTo    *string `json:"assigned_to,omitempty"`
	AssignedGroup *string `json:"assigned_group,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	NewStatus  domain.TicketStatus `json:"new_status"`
	SLATracked bool                `json:"sla_tracked"`
}

// SLAEscalationPayload is the contract consumed by the notification
// dispatcher. Delivery, formatting and retry of the actual email are the
// dispatcher's problem.
type SLAEscalationPayload struct {
	TicketID           string                 `json:"ticket_id"`
	TicketNumber       string                 `json:"ticket_number"`
	Priority           domain.TicketPriority  `json:"priority"`
	EscalationLevel    domain.EscalationLevel `json:"escalation_level"`
	MinutesUntilBreach int                    `json:"minutes_until_breach"`
	EscalationTarget   string                 `json:"escalation_target"`
}
