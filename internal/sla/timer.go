package sla

import (
	"time"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// StampDeadlines writes the response/resolution due timestamps onto the
// ticket, measured from base (creation or reopen time) against the policy's
// calendar. Called inside the same transaction that persists the ticket so
// the evaluator can never observe a pending-stamp ticket as "no SLA".
func StampDeadlines(ticket *domain.Ticket, policy *domain.SLAPolicy, base time.Time) {
	if policy == nil {
		return
	}
	ticket.SLAPolicyID = &policy.ID
	responseDue := AddBusinessMinutes(base, policy.ResponseTimeMinutes, policy)
	resolutionDue := AddBusinessMinutes(base, policy.ResolutionTimeMinutes, policy)
	ticket.SLAResponseDue = &responseDue
	ticket.SLAResolutionDue = &resolutionDue
}
