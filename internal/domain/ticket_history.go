package domain

import "time"

// ActorType identifies who performed a lifecycle change.
type ActorType string

const (
	ActorTypeAgent  ActorType = "AGENT"
	ActorTypeSystem ActorType = "SYSTEM"
)

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated         TicketChangeType = "TICKET_CREATED"
	ChangeTypeStatus          TicketChangeType = "STATUS_CHANGE"
	ChangeTypeWorkflowAdvance TicketChangeType = "WORKFLOW_ADVANCE"
	ChangeTypeAssignment      TicketChangeType = "ASSIGNMENT_CHANGE"
	ChangeTypeReopened        TicketChangeType = "TICKET_REOPENED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
