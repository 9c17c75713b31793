package sla

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/itsm-core/internal/domain"
)

func typePtr(v domain.TicketType) *domain.TicketType { return &v }

func prioPtr(v domain.TicketPriority) *domain.TicketPriority { return &v }

func strPtr(v string) *string { return &v }

func incidentTicket() *domain.Ticket {
	return &domain.Ticket{
		Type:     domain.TicketTypeIncident,
		Priority: domain.PriorityHigh,
		Impact:   domain.PriorityHigh,
		Urgency:  domain.PriorityMedium,
		Category: "network",
	}
}

func TestResolveMostSpecificWins(t *testing.T) {
	policies := []domain.SLAPolicy{
		{ID: 1, IsActive: true}, // catch-all
		{ID: 2, IsActive: true, TicketType: typePtr(domain.TicketTypeIncident)},
		{
			ID: 3, IsActive: true,
			TicketType: typePtr(domain.TicketTypeIncident),
			Priority:   prioPtr(domain.PriorityHigh),
		},
	}

	got := Resolve(incidentTicket(), policies)
	assert.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
}

func TestResolveTieBreaksOnHighestID(t *testing.T) {
	policies := []domain.SLAPolicy{
		{ID: 7, IsActive: true, TicketType: typePtr(domain.TicketTypeIncident)},
		{ID: 4, IsActive: true, Priority: prioPtr(domain.PriorityHigh)},
	}

	got := Resolve(incidentTicket(), policies)
	assert.NotNil(t, got)
	assert.Equal(t, int64(7), got.ID)
}

func TestResolveSkipsInactiveAndNonMatching(t *testing.T) {
	policies := []domain.SLAPolicy{
		{
			ID: 1, IsActive: false,
			TicketType: typePtr(domain.TicketTypeIncident),
			Priority:   prioPtr(domain.PriorityHigh),
		},
		{ID: 2, IsActive: true, TicketType: typePtr(domain.TicketTypeChange)},
		{ID: 3, IsActive: true, Category: strPtr("network")},
	}

	got := Resolve(incidentTicket(), policies)
	assert.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
}

func TestResolveCategoryMatchIsCaseInsensitive(t *testing.T) {
	policies := []domain.SLAPolicy{
		{ID: 1, IsActive: true, Category: strPtr("Network")},
	}

	got := Resolve(incidentTicket(), policies)
	assert.NotNil(t, got)
}

func TestResolveNoMatchReturnsNil(t *testing.T) {
	policies := []domain.SLAPolicy{
		{ID: 1, IsActive: true, TicketType: typePtr(domain.TicketTypeProblem)},
		{ID: 2, IsActive: false},
	}

	assert.Nil(t, Resolve(incidentTicket(), policies))
	assert.Nil(t, Resolve(incidentTicket(), nil))
}
