package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-core/internal/api/dto"
	"github.com/spec-kit/itsm-core/internal/domain"
	"github.com/spec-kit/itsm-core/internal/service"
	"github.com/spec-kit/itsm-core/internal/workflow"
	apperrors "github.com/spec-kit/itsm-core/pkg/util"
)

// TicketsHandler exposes the sanctioned lifecycle mutators and the read
// view. Identity in the payloads is opaque; permission checks belong to the
// surrounding application.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Type == "" || req.Title == "" {
		return apperrors.NewValidationError("type and title required", nil)
	}

	input := service.TicketCreateInput{
		Type:               domain.TicketType(req.Type),
		Priority:           domain.TicketPriority(req.Priority),
		Impact:             domain.TicketPriority(req.Impact),
		Urgency:            domain.TicketPriority(req.Urgency),
		Category:           req.Category,
		Title:              req.Title,
		Description:        req.Description,
		RequesterID:        req.RequesterID,
		ChangeType:         req.ChangeType,
		RiskLevel:          req.RiskLevel,
		ImplementationPlan: req.ImplementationPlan,
		RollbackPlan:       req.RollbackPlan,
		ScheduledStart:     req.ScheduledStart,
		ScheduledEnd:       req.ScheduledEnd,
	}
	ticket, err := h.lifecycle.CreateTicket(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// GetHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.lifecycle.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AdvanceWorkflow POST /tickets/:id/advance.
func (h *TicketsHandler) AdvanceWorkflow(c *fiber.Ctx) error {
	var req dto.AdvanceWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.lifecycle.AdvanceWorkflow(c.UserContext(), c.Params("id"), service.AdvanceInput{
		AssignedTo:    req.AssignedTo,
		AssignedGroup: req.AssignedGroup,
		ActorID:       req.ActorID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Reassign POST /tickets/:id/reassign.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.Reassign(c.UserContext(), c.Params("id"), req.AssignedTo, req.AssignedGroup, req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	req := actorRequest(c)
	ticket, err := h.lifecycle.Close(c.UserContext(), c.Params("id"), req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// CancelTicket POST /tickets/:id/cancel.
func (h *TicketsHandler) CancelTicket(c *fiber.Ctx) error {
	req := actorRequest(c)
	ticket, err := h.lifecycle.Cancel(c.UserContext(), c.Params("id"), req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	req := actorRequest(c)
	ticket, err := h.lifecycle.Reopen(c.UserContext(), c.Params("id"), req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// MarkFirstResponse POST /tickets/:id/first-response.
func (h *TicketsHandler) MarkFirstResponse(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.MarkFirstResponse(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func actorRequest(c *fiber.Ctx) dto.ActorRequest {
	var req dto.ActorRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	return req
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	summary := dto.TicketSummary{
		ID:               ticket.ID,
		TicketNumber:     ticket.TicketNumber,
		Type:             ticket.Type,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		Impact:           ticket.Impact,
		Urgency:          ticket.Urgency,
		Category:         ticket.Category,
		Title:            ticket.Title,
		WorkflowStep:     ticket.WorkflowStep,
		WorkflowTotal:    workflow.TotalSteps(ticket.Type),
		AssignedTo:       ticket.AssignedTo,
		AssignedGroup:    ticket.AssignedGroup,
		SLAResponseDue:   ticket.SLAResponseDue,
		SLAResolutionDue: ticket.SLAResolutionDue,
		SLABreached:      ticket.SLABreached,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
		ResolvedAt:       ticket.ResolvedAt,
		ClosedAt:         ticket.ClosedAt,
	}
	if step, ok := workflow.StepAt(ticket.Type, ticket.WorkflowStep); ok {
		summary.StepName = step.Name
	}
	return summary
}
