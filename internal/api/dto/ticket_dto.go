package dto

import (
	"time"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// CreateTicketRequest is the intake payload.
type CreateTicketRequest struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Impact      string `json:"impact"`
	Urgency     string `json:"urgency"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RequesterID string `json:"requester_id"`

	ChangeType         *string    `json:"change_type,omitempty"`
	RiskLevel          *string    `json:"risk_level,omitempty"`
	ImplementationPlan *string    `json:"implementation_plan,omitempty"`
	RollbackPlan       *string    `json:"rollback_plan,omitempty"`
	ScheduledStart     *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end,omitempty"`
}

// AdvanceWorkflowRequest optionally supplies the assignee required by the
// next step.
type AdvanceWorkflowRequest struct {
	AssignedTo    *string `json:"assigned_to,omitempty"`
	AssignedGroup *string `json:"assigned_group,omitempty"`
	ActorID       *string `json:"actor_id,omitempty"`
}

// ReassignRequest changes the assigned actor/group.
type ReassignRequest struct {
	AssignedTo    *string `json:"assigned_to"`
	AssignedGroup *string `json:"assigned_group"`
	ActorID       *string `json:"actor_id,omitempty"`
}

// ActorRequest carries just the acting agent for close/cancel/reopen.
type ActorRequest struct {
	ActorID *string `json:"actor_id,omitempty"`
}

// TicketSummary is the list/detail projection of a ticket.
type TicketSummary struct {
	ID               string                `json:"id"`
	TicketNumber     string                `json:"ticket_number"`
	Type             domain.TicketType     `json:"type"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	Impact           domain.TicketPriority `json:"impact"`
	Urgency          domain.TicketPriority `json:"urgency"`
	Category         string                `json:"category"`
	Title            string                `json:"title"`
	WorkflowStep     int                   `json:"workflow_step"`
	WorkflowTotal    int                   `json:"workflow_total"`
	StepName         string                `json:"step_name,omitempty"`
	AssignedTo       *string               `json:"assigned_to,omitempty"`
	AssignedGroup    *string               `json:"assigned_group,omitempty"`
	SLAResponseDue   *time.Time            `json:"sla_response_due,omitempty"`
	SLAResolutionDue *time.Time            `json:"sla_resolution_due,omitempty"`
	SLABreached      bool                  `json:"sla_breached"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	ResolvedAt       *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt         *time.Time            `json:"closed_at,omitempty"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.ActorType        `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id,omitempty"`
	OldValue      map[string]any          `json:"old_value,omitempty"`
	NewValue      map[string]any          `json:"new_value,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}
