package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-core/internal/domain"
	"github.com/spec-kit/itsm-core/internal/events"
	"github.com/spec-kit/itsm-core/internal/repository"
	"github.com/spec-kit/itsm-core/internal/sla"
	"github.com/spec-kit/itsm-core/internal/workflow"
	apperrors "github.com/spec-kit/itsm-core/pkg/util"
)

// LifecycleService owns every sanctioned mutation of ticket lifecycle
// state: status, workflow step and assignment. The status/assignment
// invariants are enforced at write time here, never by a corrective batch.
type LifecycleService struct {
	tickets    repository.TicketRepository
	policies   repository.SLAPolicyRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	PolicyRepo  repository.SLAPolicyRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Now         func() time.Time
}

// TicketCreateInput describes the intake payload. Title/description and the
// requester reference are opaque to the core.
type TicketCreateInput struct {
	Type        domain.TicketType
	Priority    domain.TicketPriority
	Impact      domain.TicketPriority
	Urgency     domain.TicketPriority
	Category    string
	Title       string
	Description string
	RequesterID string

	// Change management intake, optional.
	ChangeType         *string
	RiskLevel          *string
	ImplementationPlan *string
	RollbackPlan       *string
	ScheduledStart     *time.Time
	ScheduledEnd       *time.Time
}

// AdvanceInput optionally supplies the assignee the next workflow step
// requires.
type AdvanceInput struct {
	AssignedTo    *string
	AssignedGroup *string
	ActorID       *string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		policies:   deps.PolicyRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// CreateTicket registers a new ticket: status "new", workflow step 1, no
// assignee, SLA deadlines stamped against the best-matching policy before
// the insert so the evaluator can never observe a half-created ticket.
func (s *LifecycleService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": input.Type})
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if input.Impact == "" {
		input.Impact = input.Priority
	}
	if input.Urgency == "" {
		input.Urgency = input.Priority
	}
	for name, value := range map[string]domain.TicketPriority{
		"priority": input.Priority, "impact": input.Impact, "urgency": input.Urgency,
	} {
		if !value.Valid() {
			return nil, apperrors.NewValidationError("value outside priority domain", map[string]any{name: value})
		}
	}

	createdAt := s.now()
	ticket := &domain.Ticket{
		Type:               input.Type,
		Status:             domain.TicketStatusNew,
		Priority:           input.Priority,
		Impact:             input.Impact,
		Urgency:            input.Urgency,
		Category:           input.Category,
		Title:              input.Title,
		Description:        input.Description,
		RequesterID:        input.RequesterID,
		WorkflowStep:       1,
		CreatedAt:          createdAt,
		ChangeType:         input.ChangeType,
		RiskLevel:          input.RiskLevel,
		ImplementationPlan: input.ImplementationPlan,
		RollbackPlan:       input.RollbackPlan,
		ScheduledStart:     input.ScheduledStart,
		ScheduledEnd:       input.ScheduledEnd,
	}

	if err := s.stampSLA(ctx, ticket, createdAt); err != nil {
		return nil, err
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.record(ctx, nil, ticket.ID, domain.ChangeTypeCreated,
		nil,
		map[string]any{"ticket_number": ticket.TicketNumber, "status": ticket.Status, "workflow_step": 1})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			TicketType:   ticket.Type,
			Priority:     ticket.Priority,
			SLATracked:   ticket.SLAPolicyID != nil,
		},
	})
	return ticket, nil
}

// AdvanceWorkflow moves the ticket to its next workflow step and the step's
// expected status. When the next step implies an assignee role and neither
// the ticket nor the input supplies one, the ticket stays in "new" instead
// of entering an assigned-but-unassigned state.
func (s *LifecycleService) AdvanceWorkflow(ctx context.Context, ticketID string, input AdvanceInput) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewTerminalState(ticket.ID)
	}
	total := workflow.TotalSteps(ticket.Type)
	if ticket.WorkflowStep >= total {
		return nil, apperrors.NewWorkflowComplete(ticket.ID)
	}

	next, ok := workflow.StepAt(ticket.Type, ticket.WorkflowStep+1)
	if !ok {
		return nil, apperrors.NewWorkflowComplete(ticket.ID)
	}

	oldStatus := ticket.Status
	oldStep := ticket.WorkflowStep
	if input.AssignedTo != nil {
		ticket.AssignedTo = input.AssignedTo
	}
	if input.AssignedGroup != nil {
		ticket.AssignedGroup = input.AssignedGroup
	}

	ticket.WorkflowStep = next.Ordinal
	if next.ExpectedStatus.RequiresAssignee() && !ticket.Assigned() {
		// Invariant repair: no assignee means no assigned-family status.
		ticket.Status = domain.TicketStatusNew
		ticket.AssignedGroup = nil
	} else {
		ticket.Status = next.ExpectedStatus
	}

	s.applyStatusTimestamps(ticket, oldStatus)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.record(ctx, input.ActorID, ticket.ID, domain.ChangeTypeWorkflowAdvance,
		map[string]any{"workflow_step": oldStep, "status": oldStatus},
		map[string]any{"workflow_step": ticket.WorkflowStep, "status": ticket.Status, "step_name": next.Name})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorFor(input.ActorID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:    oldStatus,
			NewStatus:    ticket.Status,
			WorkflowStep: ticket.WorkflowStep,
			StepName:     next.Name,
		},
	})
	return ticket, nil
}

// Reassign changes the assigned actor/group. Dropping the assignee while
// the status requires one reverts the status to "new"; the invariant is
// repaired at write time, not by a later cleanup job.
func (s *LifecycleService) Reassign(ctx context.Context, ticketID string, assignedTo, assignedGroup, actorID *string) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewInvalidTransition("cannot reassign a terminal ticket",
			map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
	}

	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedTo
	oldGroup := ticket.AssignedGroup
	ticket.AssignedTo = assignedTo
	ticket.AssignedGroup = assignedGroup

	switch {
	case ticket.AssignedTo == nil && ticket.Status.RequiresAssignee():
		ticket.Status = domain.TicketStatusNew
		ticket.AssignedGroup = nil
	case ticket.AssignedTo != nil && ticket.Status == domain.TicketStatusNew:
		ticket.Status = domain.TicketStatusAssigned
	}

	s.applyStatusTimestamps(ticket, oldStatus)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.record(ctx, actorID, ticket.ID, domain.ChangeTypeAssignment,
		map[string]any{"assigned_to": oldAssignee, "assigned_group": oldGroup, "status": oldStatus},
		map[string]any{"assigned_to": ticket.AssignedTo, "assigned_group": ticket.AssignedGroup, "status": ticket.Status})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actorFor(actorID),
		Payload: events.TicketAssignedPayload{
			AssignedTo:    ticket.AssignedTo,
			AssignedGroup: ticket.AssignedGroup,
		},
	})
	return ticket, nil
}

// Close moves the ticket to its terminal closed state. Calling it on an
// already-terminal ticket is a no-op, not an error.
func (s *LifecycleService) Close(ctx context.Context, ticketID string, actorID *string) (*domain.Ticket, error) {
	return s.terminate(ctx, ticketID, domain.TicketStatusClosed, actorID)
}

// Cancel moves the ticket to cancelled; reachable from any non-terminal
// state and idempotent on terminal tickets.
func (s *LifecycleService) Cancel(ctx context.Context, ticketID string, actorID *string) (*domain.Ticket, error) {
	return s.terminate(ctx, ticketID, domain.TicketStatusCancelled, actorID)
}

func (s *LifecycleService) terminate(ctx context.Context, ticketID string, target domain.TicketStatus, actorID *string) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() {
		return ticket, nil
	}

	oldStatus := ticket.Status
	ticket.Status = target
	closedAt := s.now()
	ticket.ClosedAt = &closedAt

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.record(ctx, actorID, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorFor(actorID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:    oldStatus,
			NewStatus:    ticket.Status,
			WorkflowStep: ticket.WorkflowStep,
		},
	})
	return ticket, nil
}

// Reopen reactivates a resolved or closed ticket and re-stamps its SLA
// deadlines from the reopen instant. The breach flag stays sticky.
func (s *LifecycleService) Reopen(ctx context.Context, ticketID string, actorID *string) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidTransition("only resolved or closed tickets can be reopened",
			map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
	}

	oldStatus := ticket.Status
	if ticket.Assigned() {
		ticket.Status = domain.TicketStatusInProgress
	} else {
		ticket.Status = domain.TicketStatusNew
		ticket.AssignedGroup = nil
	}
	ticket.ResolvedAt = nil
	ticket.ClosedAt = nil

	reopenedAt := s.now()
	if err := s.stampSLA(ctx, ticket, reopenedAt); err != nil {
		return nil, err
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.record(ctx, actorID, ticket.ID, domain.ChangeTypeReopened,
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    actorFor(actorID),
		Payload: events.TicketReopenedPayload{
			NewStatus:  ticket.Status,
			SLATracked: ticket.SLAPolicyID != nil,
		},
	})
	return ticket, nil
}

// MarkFirstResponse stamps first_response_at once. The collaborator layer
// decides what counts as a first response (first comment, first assignment);
// repeated calls are no-ops.
func (s *LifecycleService) MarkFirstResponse(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.FirstResponseAt != nil {
		return ticket, nil
	}
	respondedAt := s.now()
	ticket.FirstResponseAt = &respondedAt
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// TicketView is the read contract consumed by dashboards.
type TicketView struct {
	ID               string
	TicketNumber     string
	Type             domain.TicketType
	Status           domain.TicketStatus
	Priority         domain.TicketPriority
	WorkflowStep     int
	WorkflowTotal    int
	StepName         string
	AssignedTo       *string
	AssignedGroup    *string
	SLAResponseDue   *time.Time
	SLAResolutionDue *time.Time
	SLABreached      bool
}

// GetTicket fetches the full aggregate.
func (s *LifecycleService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.get(ctx, ticketID)
}

// View returns the dashboard-facing projection of one ticket.
func (s *LifecycleService) View(ctx context.Context, ticketID string) (*TicketView, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	view := &TicketView{
		ID:               ticket.ID,
		TicketNumber:     ticket.TicketNumber,
		Type:             ticket.Type,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		WorkflowStep:     ticket.WorkflowStep,
		WorkflowTotal:    workflow.TotalSteps(ticket.Type),
		AssignedTo:       ticket.AssignedTo,
		AssignedGroup:    ticket.AssignedGroup,
		SLAResponseDue:   ticket.SLAResponseDue,
		SLAResolutionDue: ticket.SLAResolutionDue,
		SLABreached:      ticket.SLABreached,
	}
	if step, ok := workflow.StepAt(ticket.Type, ticket.WorkflowStep); ok {
		view.StepName = step.Name
	}
	return view, nil
}

// History returns the ticket's lifecycle audit trail.
func (s *LifecycleService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	return s.history.ListByTicket(ctx, ticketID)
}

func (s *LifecycleService) get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

// stampSLA resolves the best-matching active policy and writes the due
// timestamps. A missing policy is a normal condition: the ticket proceeds
// without SLA tracking.
func (s *LifecycleService) stampSLA(ctx context.Context, ticket *domain.Ticket, base time.Time) error {
	policies, err := s.policies.ListActive(ctx)
	if err != nil {
		return err
	}
	policy := sla.Resolve(ticket, policies)
	if policy == nil {
		ticket.SLAPolicyID = nil
		ticket.SLAResponseDue = nil
		ticket.SLAResolutionDue = nil
		if s.logger != nil {
			s.logger.Debug("no SLA policy matched", zap.String("ticket_number", ticket.TicketNumber))
		}
		return nil
	}
	sla.StampDeadlines(ticket, policy, base)
	return nil
}

// applyStatusTimestamps keeps the once-written lifecycle timestamps in
// sync with a status change.
func (s *LifecycleService) applyStatusTimestamps(ticket *domain.Ticket, oldStatus domain.TicketStatus) {
	now := s.now()
	if oldStatus == domain.TicketStatusNew && ticket.Status != domain.TicketStatusNew && ticket.FirstResponseAt == nil {
		ticket.FirstResponseAt = &now
	}
	if ticket.Status == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
	}
	if ticket.Status == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		ticket.ClosedAt = &now
	}
}

func (s *LifecycleService) record(ctx context.Context, actorID *string, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	actorType := domain.ActorTypeSystem
	if actorID != nil {
		actorType = domain.ActorTypeAgent
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: actorType,
		ChangedByID:   actorID,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("failed to record ticket history", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func actorFor(actorID *string) events.Actor {
	if actorID == nil {
		return events.Actor{Type: domain.ActorTypeSystem}
	}
	return events.Actor{Type: domain.ActorTypeAgent, ID: actorID}
}
