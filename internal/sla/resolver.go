package sla

import "github.com/spec-kit/itsm-core/internal/domain"

// Resolve picks the single best-matching policy for a ticket:
// most non-null conditions wins, ties broken by the most recently created
// policy (highest id). Returns nil when nothing matches; tickets without
// a policy simply proceed without SLA tracking.
func Resolve(ticket *domain.Ticket, policies []domain.SLAPolicy) *domain.SLAPolicy {
	var best *domain.SLAPolicy
	bestSpecificity := -1
	for i := range policies {
		policy := &policies[i]
		if !policy.IsActive || !policy.Matches(ticket) {
			continue
		}
		specificity := policy.Specificity()
		if specificity > bestSpecificity ||
			(specificity == bestSpecificity && best != nil && policy.ID > best.ID) {
			best = policy
			bestSpecificity = specificity
		}
	}
	return best
}
