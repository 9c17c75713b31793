// Package workflow holds the fixed per-type process definitions. The
// tables are resolved at compile time and consulted by both the lifecycle
// service and the read API; they are never mutated at runtime.
package workflow

import (
	"time"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// Assignee roles expected by workflow steps. The core stores and compares
// these as opaque strings; permission resolution belongs to collaborators.
const (
	RoleServiceDesk    = "service_desk"
	RoleTechnician     = "technician"
	RoleProblemManager = "problem_manager"
	RoleChangeManager  = "change_manager"
)

// Step is one ordinal stage in a ticket type's process definition.
type Step struct {
	Ordinal          int
	Name             string
	ExpectedStatus   domain.TicketStatus
	ExpectedRole     string // empty when the step does not imply an assignee
	NominalTimeframe time.Duration
}

var requestSteps = []Step{
	{1, "Request Submitted", domain.TicketStatusNew, "", 30 * time.Minute},
	{2, "Request Triage", domain.TicketStatusAssigned, RoleServiceDesk, 2 * time.Hour},
	{3, "Fulfilment", domain.TicketStatusInProgress, RoleServiceDesk, 8 * time.Hour},
	{4, "Awaiting Requester Confirmation", domain.TicketStatusPending, RoleServiceDesk, 24 * time.Hour},
	{5, "Request Resolved", domain.TicketStatusResolved, RoleServiceDesk, 4 * time.Hour},
	{6, "Request Closure", domain.TicketStatusClosed, RoleServiceDesk, time.Hour},
}

var incidentSteps = []Step{
	{1, "Incident Logged", domain.TicketStatusNew, "", 15 * time.Minute},
	{2, "Incident Triage", domain.TicketStatusAssigned, RoleServiceDesk, time.Hour},
	{3, "Investigation & Diagnosis", domain.TicketStatusInProgress, RoleTechnician, 4 * time.Hour},
	{4, "Awaiting User Confirmation", domain.TicketStatusPending, RoleTechnician, 8 * time.Hour},
	{5, "Incident Resolved", domain.TicketStatusResolved, RoleTechnician, 2 * time.Hour},
	{6, "Incident Closure", domain.TicketStatusClosed, RoleTechnician, time.Hour},
}

var problemSteps = []Step{
	{1, "Problem Detected", domain.TicketStatusNew, "", time.Hour},
	{2, "Problem Logged & Categorized", domain.TicketStatusAssigned, RoleProblemManager, 4 * time.Hour},
	{3, "Investigation & Diagnosis", domain.TicketStatusInProgress, RoleTechnician, 24 * time.Hour},
	{4, "Workaround Identified", domain.TicketStatusInProgress, RoleTechnician, 8 * time.Hour},
	{5, "Root Cause Analysis", domain.TicketStatusInProgress, RoleTechnician, 24 * time.Hour},
	{6, "Known Error Recorded", domain.TicketStatusOnHold, RoleProblemManager, 4 * time.Hour},
	{7, "Resolution Planning", domain.TicketStatusInProgress, RoleProblemManager, 8 * time.Hour},
	{8, "Resolution Implementation", domain.TicketStatusInProgress, RoleTechnician, 24 * time.Hour},
	{9, "Problem Resolved", domain.TicketStatusResolved, RoleProblemManager, 4 * time.Hour},
	{10, "Problem Closure", domain.TicketStatusClosed, RoleProblemManager, 2 * time.Hour},
}

var changeSteps = []Step{
	{1, "Change Request Submitted", domain.TicketStatusNew, "", time.Hour},
	{2, "Change Logged", domain.TicketStatusAssigned, RoleChangeManager, 4 * time.Hour},
	{3, "Risk & Impact Assessment", domain.TicketStatusPending, RoleChangeManager, 8 * time.Hour},
	{4, "CAB Approval", domain.TicketStatusApproved, RoleChangeManager, 24 * time.Hour},
	{5, "Implementation Planning", domain.TicketStatusInProgress, RoleChangeManager, 8 * time.Hour},
	{6, "Build & Test", domain.TicketStatusInProgress, RoleTechnician, 24 * time.Hour},
	{7, "Scheduled Window", domain.TicketStatusOnHold, RoleTechnician, 24 * time.Hour},
	{8, "Implementation", domain.TicketStatusInProgress, RoleTechnician, 8 * time.Hour},
	{9, "Post-Implementation Review", domain.TicketStatusInProgress, RoleChangeManager, 4 * time.Hour},
	{10, "Change Closure", domain.TicketStatusResolved, RoleChangeManager, 2 * time.Hour},
}

var stepsByType = map[domain.TicketType][]Step{
	domain.TicketTypeRequest:  requestSteps,
	domain.TicketTypeIncident: incidentSteps,
	domain.TicketTypeProblem:  problemSteps,
	domain.TicketTypeChange:   changeSteps,
}

// Steps returns the ordered step list for a ticket type.
func Steps(t domain.TicketType) []Step {
	return stepsByType[t]
}

// TotalSteps returns the workflow length for a ticket type.
func TotalSteps(t domain.TicketType) int {
	return len(stepsByType[t])
}

// StepAt looks up a 1-based step ordinal.
func StepAt(t domain.TicketType, ordinal int) (Step, bool) {
	steps := stepsByType[t]
	if ordinal < 1 || ordinal > len(steps) {
		return Step{}, false
	}
	return steps[ordinal-1], true
}
