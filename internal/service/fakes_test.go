package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/itsm-core/internal/domain"
	"github.com/spec-kit/itsm-core/internal/events"
	apperrors "github.com/spec-kit/itsm-core/pkg/util"
)

// In-memory repository doubles mirroring the postgres behavior the
// services rely on: dense per-(type, year) numbering, optimistic version
// checks, idempotent breach rows and the monotonic level CAS.

type fakeTicketRepo struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	counters map[string]int64

	// updateConflicts > 0 makes the next Update calls fail as if a
	// competing writer had bumped the version first.
	updateConflicts int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:  make(map[string]*domain.Ticket),
		counters: make(map[string]int64),
	}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	return &c
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	year := ticket.CreatedAt.Year()
	key := fmt.Sprintf("%s|%d", ticket.Type, year)
	r.counters[key]++
	ticket.TicketNumber = fmt.Sprintf("%s-%d-%05d", ticket.Type.NumberPrefix(), year, r.counters[key])

	ticket.ID = uuid.NewString()
	ticket.Version = 1
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.TicketNumber == number {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateConflicts > 0 {
		r.updateConflicts--
		return apperrors.NewConcurrentModification(ticket.ID)
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.Version != ticket.Version {
		return apperrors.NewConcurrentModification(ticket.ID)
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) MarkBreached(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.SLABreached = true
	return nil
}

func (r *fakeTicketRepo) ListForEvaluation(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if !ticket.Open() {
			continue
		}
		if ticket.SLAResponseDue == nil && ticket.SLAResolutionDue == nil {
			continue
		}
		out = append(out, *cloneTicket(ticket))
	}
	return out, nil
}

type fakePolicyRepo struct {
	policies []domain.SLAPolicy
	listErr  error
}

func (r *fakePolicyRepo) GetByID(_ context.Context, id int64) (*domain.SLAPolicy, error) {
	for i := range r.policies {
		if r.policies[i].ID == id {
			policy := r.policies[i]
			return &policy, nil
		}
	}
	return nil, fmt.Errorf("sla policy %d not found", id)
}

func (r *fakePolicyRepo) ListActive(_ context.Context) ([]domain.SLAPolicy, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.SLAPolicy
	for _, policy := range r.policies {
		if policy.IsActive {
			out = append(out, policy)
		}
	}
	return out, nil
}

type fakeBreachRepo struct {
	mu   sync.Mutex
	rows map[string]domain.SLABreach
}

func newFakeBreachRepo() *fakeBreachRepo {
	return &fakeBreachRepo{rows: make(map[string]domain.SLABreach)}
}

func (r *fakeBreachRepo) Record(_ context.Context, breach *domain.SLABreach) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := breach.TicketID + "|" + string(breach.BreachType)
	if existing, ok := r.rows[key]; ok {
		// First write wins, matching the COALESCE upsert.
		*breach = existing
		return nil
	}
	breach.ID = int64(len(r.rows) + 1)
	r.rows[key] = *breach
	return nil
}

func (r *fakeBreachRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.SLABreach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SLABreach
	for _, row := range r.rows {
		if row.TicketID == ticketID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeBreachRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeStateRepo struct {
	mu     sync.Mutex
	levels map[string]domain.EscalationLevel
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{levels: make(map[string]domain.EscalationLevel)}
}

func (r *fakeStateRepo) Get(_ context.Context, ticketID string) (*domain.EscalationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &domain.EscalationState{TicketID: ticketID, LastLevelNotified: r.levels[ticketID]}, nil
}

func (r *fakeStateRepo) RaiseLevel(_ context.Context, ticketID string, level domain.EscalationLevel, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.levels[ticketID] >= level {
		return false, nil
	}
	r.levels[ticketID] = level
	return true, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.NewString()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// eventCollector records every event published through the dispatcher.
type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) attach(dispatcher events.Dispatcher) {
	handler := func(_ context.Context, event events.Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketReopened,
		events.EventSLAEscalation,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
}

func (c *eventCollector) ofType(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
