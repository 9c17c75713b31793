package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-core/internal/config"
	"github.com/spec-kit/itsm-core/internal/domain"
	"github.com/spec-kit/itsm-core/internal/events"
	"github.com/spec-kit/itsm-core/internal/observability"
	"github.com/spec-kit/itsm-core/internal/workflow"
)

type escalationFixture struct {
	svc      *EscalationService
	tickets  *fakeTicketRepo
	policies *fakePolicyRepo
	breaches *fakeBreachRepo
	state    *fakeStateRepo
	events   *eventCollector
	metrics  *observability.Metrics
	clock    time.Time
	mu       sync.Mutex
}

func (f *escalationFixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *escalationFixture) setClock(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = t
}

func newEscalationFixture(policies ...domain.SLAPolicy) *escalationFixture {
	fix := &escalationFixture{
		tickets:  newFakeTicketRepo(),
		policies: &fakePolicyRepo{policies: policies},
		breaches: newFakeBreachRepo(),
		state:    newFakeStateRepo(),
		events:   &eventCollector{},
		metrics:  observability.NewMetrics(),
		clock:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	dispatcher := events.NewInMemoryDispatcher()
	fix.events.attach(dispatcher)
	fix.svc = NewEscalationService(EscalationDependencies{
		TicketRepo: fix.tickets,
		PolicyRepo: fix.policies,
		BreachRepo: fix.breaches,
		StateRepo:  fix.state,
		Dispatcher: dispatcher,
		Metrics:    fix.metrics,
		Logger:     zap.NewNop(),
		Escalation: config.EscalationConfig{WarningPercent: 25, CriticalMinutes: 120},
		Now:        fix.now,
	})
	return fix
}

// seedTicket stores an open ticket with a resolution deadline the given
// duration away from the fixture clock. First response is already recorded
// so the resolution deadline is the active one.
func (f *escalationFixture) seedTicket(t *testing.T, policyID int64, untilDue time.Duration) *domain.Ticket {
	t.Helper()
	agent := "agent-1"
	responded := f.now().Add(-time.Hour)
	due := f.now().Add(untilDue)
	ticket := &domain.Ticket{
		Type:             domain.TicketTypeIncident,
		Status:           domain.TicketStatusInProgress,
		Priority:         domain.PriorityHigh,
		Impact:           domain.PriorityHigh,
		Urgency:          domain.PriorityHigh,
		Title:            "seeded",
		WorkflowStep:     3,
		AssignedTo:       &agent,
		CreatedAt:        f.now().Add(-2 * time.Hour),
		FirstResponseAt:  &responded,
		SLAPolicyID:      &policyID,
		SLAResolutionDue: &due,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
	return ticket
}

func TestEvaluateBreachedTicket(t *testing.T) {
	fix := newEscalationFixture(incidentPolicy())
	ctx := context.Background()

	ticket := fix.seedTicket(t, 42, -time.Hour)

	summary, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, EvaluationSummary{Evaluated: 1, Notified: 1, Breached: 1}, summary)

	rows, err := fix.breaches.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.BreachTypeResolution, rows[0].BreachType)
	require.NotNil(t, rows[0].BreachDurationMinutes)
	assert.Equal(t, 60, *rows[0].BreachDurationMinutes)

	stored, err := fix.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLABreached)

	notifications := fix.events.ofType(events.EventSLAEscalation)
	require.Len(t, notifications, 1)
	payload := notifications[0].Payload.(events.SLAEscalationPayload)
	assert.Equal(t, domain.EscalationLevelBreached, payload.EscalationLevel)
	assert.Equal(t, ticket.TicketNumber, payload.TicketNumber)
	assert.Negative(t, payload.MinutesUntilBreach)
}

func TestEvaluateNotifiesAtMostOncePerLevel(t *testing.T) {
	fix := newEscalationFixture(incidentPolicy())
	ctx := context.Background()

	// 480-minute resolution window, warning floor at 120 minutes. Due in
	// 60 minutes puts the ticket straight into the critical band.
	fix.seedTicket(t, 42, time.Hour)

	first, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Notified)

	// A second run at the same level must stay silent.
	second, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Notified)
	assert.Len(t, fix.events.ofType(events.EventSLAEscalation), 1)

	// Crossing into breached is a new upward transition: one more event.
	fix.setClock(fix.now().Add(2 * time.Hour))
	third, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Notified)
	assert.Equal(t, 1, third.Breached)

	fourth, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fourth.Notified)

	notifications := fix.events.ofType(events.EventSLAEscalation)
	require.Len(t, notifications, 2)
	assert.Equal(t, domain.EscalationLevelCritical, notifications[0].Payload.(events.SLAEscalationPayload).EscalationLevel)
	assert.Equal(t, domain.EscalationLevelBreached, notifications[1].Payload.(events.SLAEscalationPayload).EscalationLevel)

	// The breach row is recorded once regardless of repeat runs.
	assert.Equal(t, 1, fix.breaches.count())
}

func TestEvaluateSkipsUntrackedTickets(t *testing.T) {
	fix := newEscalationFixture()
	ctx := context.Background()

	due := fix.now().Add(-time.Hour)
	ticket := &domain.Ticket{
		Type:             domain.TicketTypeRequest,
		Status:           domain.TicketStatusInProgress,
		Priority:         domain.PriorityLow,
		Title:            "untracked",
		WorkflowStep:     3,
		CreatedAt:        fix.now(),
		SLAResolutionDue: &due, // stale stamp without a policy reference
	}
	require.NoError(t, fix.tickets.Create(ctx, ticket))

	summary, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, EvaluationSummary{Evaluated: 1}, summary)
	assert.Empty(t, fix.events.ofType(events.EventSLAEscalation))
}

func TestEvaluateIsolatesPerTicketFailures(t *testing.T) {
	fix := newEscalationFixture(incidentPolicy())
	ctx := context.Background()

	fix.seedTicket(t, 42, -30*time.Minute)
	fix.seedTicket(t, 999, -30*time.Minute) // policy lookup will fail

	summary, err := fix.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Breached)
	assert.Equal(t, 1, fix.breaches.count())
}

func TestEvaluateStopsOnCancelledContext(t *testing.T) {
	fix := newEscalationFixture(incidentPolicy())
	fix.seedTicket(t, 42, -time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := fix.svc.EvaluateAll(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, summary.Evaluated)
}

func TestDashboardBucketsTickets(t *testing.T) {
	fix := newEscalationFixture(incidentPolicy())
	ctx := context.Background()

	// One ticket each: comfortably ahead, inside the critical band, and
	// past its deadline.
	fix.seedTicket(t, 42, 10*time.Hour)
	fix.seedTicket(t, 42, 90*time.Minute)
	fix.seedTicket(t, 42, -15*time.Minute)

	// Untracked ticket counts as on track.
	due := fix.now().Add(time.Hour)
	untracked := &domain.Ticket{
		Type:             domain.TicketTypeRequest,
		Status:           domain.TicketStatusInProgress,
		Priority:         domain.PriorityLow,
		Title:            "untracked",
		WorkflowStep:     2,
		CreatedAt:        fix.now(),
		SLAResolutionDue: &due,
	}
	require.NoError(t, fix.tickets.Create(ctx, untracked))

	counts, err := fix.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardCounts{OnTrack: 2, DueSoon: 1, Breached: 1}, counts)

	// Dashboard reads never mutate escalation state.
	assert.Empty(t, fix.events.ofType(events.EventSLAEscalation))
	assert.Equal(t, 0, fix.breaches.count())
}

func TestEscalationTargetResolution(t *testing.T) {
	group := "network-team"
	tests := []struct {
		name   string
		ticket domain.Ticket
		want   string
	}{
		{
			name:   "assigned group wins",
			ticket: domain.Ticket{Type: domain.TicketTypeIncident, WorkflowStep: 3, AssignedGroup: &group},
			want:   group,
		},
		{
			name:   "falls back to step role",
			ticket: domain.Ticket{Type: domain.TicketTypeIncident, WorkflowStep: 3},
			want:   workflow.RoleTechnician,
		},
		{
			name:   "service desk as last resort",
			ticket: domain.Ticket{Type: domain.TicketTypeIncident, WorkflowStep: 1},
			want:   workflow.RoleServiceDesk,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, escalationTarget(&tc.ticket))
		})
	}
}
