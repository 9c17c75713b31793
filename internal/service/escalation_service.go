package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-core/internal/config"
	"github.com/spec-kit/itsm-core/internal/domain"
	"github.com/spec-kit/itsm-core/internal/events"
	"github.com/spec-kit/itsm-core/internal/observability"
	"github.com/spec-kit/itsm-core/internal/repository"
	"github.com/spec-kit/itsm-core/internal/sla"
	"github.com/spec-kit/itsm-core/internal/workflow"
)

// EscalationService is the periodic evaluator: it scans open tickets with
// stamped deadlines, classifies each into an escalation level, records
// breaches, and emits at most one notification per upward level transition.
type EscalationService struct {
	tickets    repository.TicketRepository
	policies   repository.SLAPolicyRepository
	breaches   repository.SLABreachRepository
	state      repository.EscalationStateRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	thresholds sla.Thresholds
	now        func() time.Time
}

// EscalationDependencies bundles collaborators for the evaluator.
type EscalationDependencies struct {
	TicketRepo repository.TicketRepository
	PolicyRepo repository.SLAPolicyRepository
	BreachRepo repository.SLABreachRepository
	StateRepo  repository.EscalationStateRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Escalation config.EscalationConfig
	Now        func() time.Time
}

// EvaluationSummary reports one batch run.
type EvaluationSummary struct {
	Evaluated int
	Notified  int
	Breached  int
	Failed    int
}

// DashboardCounts is the aggregate contract consumed by dashboards: the
// evaluator's classification applied read-only to the current ticket set.
type DashboardCounts struct {
	OnTrack  int `json:"on_track"`
	DueSoon  int `json:"due_soon"`
	Breached int `json:"breached"`
}

// NewEscalationService constructs the evaluator.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &EscalationService{
		tickets:    deps.TicketRepo,
		policies:   deps.PolicyRepo,
		breaches:   deps.BreachRepo,
		state:      deps.StateRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		thresholds: sla.Thresholds{
			WarningPercent:  deps.Escalation.WarningPercent,
			CriticalMinutes: deps.Escalation.CriticalMinutes,
		},
		now: now,
	}
}

// EvaluateAll runs one batch over every open ticket carrying a deadline.
// A single ticket's failure is logged and skipped; it never aborts the
// batch. The run may be cancelled between tickets, leaving already
// processed tickets consistent.
func (s *EscalationService) EvaluateAll(ctx context.Context) (EvaluationSummary, error) {
	summary := EvaluationSummary{}

	tickets, err := s.tickets.ListForEvaluation(ctx)
	if err != nil {
		return summary, err
	}

	for i := range tickets {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordEvaluatorRun(summary.Evaluated, summary.Failed)
			return summary, err
		}
		ticket := &tickets[i]
		notified, breached, err := s.evaluateTicket(ctx, ticket)
		if err != nil {
			summary.Failed++
			s.logger.Warn("escalation evaluation failed for ticket",
				zap.String("ticket_id", ticket.ID),
				zap.String("ticket_number", ticket.TicketNumber),
				zap.Error(err))
			continue
		}
		summary.Evaluated++
		if notified {
			summary.Notified++
		}
		if breached {
			summary.Breached++
		}
	}

	s.metrics.RecordEvaluatorRun(summary.Evaluated, summary.Failed)
	return summary, nil
}

func (s *EscalationService) evaluateTicket(ctx context.Context, ticket *domain.Ticket) (notified, breached bool, err error) {
	if ticket.SLAPolicyID == nil {
		return false, false, nil
	}
	policy, err := s.policies.GetByID(ctx, *ticket.SLAPolicyID)
	if err != nil {
		return false, false, err
	}

	now := s.now()
	verdict, ok := sla.Classify(ticket, policy, now, s.thresholds)
	if !ok {
		return false, false, nil
	}

	if verdict.Level == domain.EscalationLevelBreached {
		if err := s.recordBreach(ctx, ticket, policy, verdict, now); err != nil {
			return false, false, err
		}
		breached = true
	}

	if verdict.Level == domain.EscalationLevelSafe {
		return false, breached, nil
	}

	// The CAS on escalation_state is the serialization point: only the run
	// that actually raises the stored level gets to notify.
	won, err := s.state.RaiseLevel(ctx, ticket.ID, verdict.Level, now)
	if err != nil {
		return false, breached, err
	}
	if !won {
		return false, breached, nil
	}

	s.publish(ctx, events.Event{
		Type:     events.EventSLAEscalation,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorTypeSystem},
		Payload: events.SLAEscalationPayload{
			TicketID:           ticket.ID,
			TicketNumber:       ticket.TicketNumber,
			Priority:           ticket.Priority,
			EscalationLevel:    verdict.Level,
			MinutesUntilBreach: verdict.MinutesUntilBreach,
			EscalationTarget:   escalationTarget(ticket),
		},
	})
	s.metrics.RecordEscalationEmitted()
	return true, breached, nil
}

func (s *EscalationService) recordBreach(ctx context.Context, ticket *domain.Ticket, policy *domain.SLAPolicy, verdict sla.Classification, now time.Time) error {
	duration := -verdict.MinutesUntilBreach
	breach := &domain.SLABreach{
		TicketID:              ticket.ID,
		SLAPolicyID:           policy.ID,
		BreachType:            verdict.BreachType,
		TargetTime:            verdict.Deadline,
		ActualTime:            &now,
		BreachDurationMinutes: &duration,
	}
	if err := s.breaches.Record(ctx, breach); err != nil {
		return err
	}
	s.metrics.RecordBreach()

	if !ticket.SLABreached {
		if err := s.tickets.MarkBreached(ctx, ticket.ID); err != nil {
			return err
		}
		ticket.SLABreached = true
	}
	return nil
}

// Dashboard applies the classification read-only over the evaluable ticket
// set and buckets the results. Tickets without SLA tracking count as on
// track.
func (s *EscalationService) Dashboard(ctx context.Context) (DashboardCounts, error) {
	counts := DashboardCounts{}
	tickets, err := s.tickets.ListForEvaluation(ctx)
	if err != nil {
		return counts, err
	}
	now := s.now()
	for i := range tickets {
		ticket := &tickets[i]
		if ticket.SLAPolicyID == nil {
			counts.OnTrack++
			continue
		}
		policy, err := s.policies.GetByID(ctx, *ticket.SLAPolicyID)
		if err != nil {
			s.logger.Warn("dashboard policy lookup failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		verdict, ok := sla.Classify(ticket, policy, now, s.thresholds)
		if !ok {
			counts.OnTrack++
			continue
		}
		switch verdict.Level {
		case domain.EscalationLevelBreached:
			counts.Breached++
		case domain.EscalationLevelWatch, domain.EscalationLevelCritical:
			counts.DueSoon++
		default:
			counts.OnTrack++
		}
	}
	return counts, nil
}

// escalationTarget names who should be alerted: the assigned group when
// set, otherwise the role the current workflow step expects.
func escalationTarget(ticket *domain.Ticket) string {
	if ticket.AssignedGroup != nil {
		return *ticket.AssignedGroup
	}
	if step, ok := workflow.StepAt(ticket.Type, ticket.WorkflowStep); ok && step.ExpectedRole != "" {
		return step.ExpectedRole
	}
	return workflow.RoleServiceDesk
}

func (s *EscalationService) publish(ctx context.Context, event events.Event) {
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
