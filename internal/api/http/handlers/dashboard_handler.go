package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-core/internal/service"
)

// DashboardHandler serves the SLA aggregate counts.
type DashboardHandler struct {
	escalation *service.EscalationService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(escalation *service.EscalationService) *DashboardHandler {
	return &DashboardHandler{escalation: escalation}
}

// SLACounts handles GET /dashboard/sla. Tickets are bucketed as on-track,
// due-soon or breached using the evaluator's classification, read-only.
func (h *DashboardHandler) SLACounts(c *fiber.Ctx) error {
	counts, err := h.escalation.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}
