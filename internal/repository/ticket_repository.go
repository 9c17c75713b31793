package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itsm-core/internal/domain"
	apperrors "github.com/spec-kit/itsm-core/pkg/util"
)

// TicketRepository encapsulates ticket persistence. Create assigns the
// per-(type, year) ticket number atomically; Update is optimistic on the
// ticket's version column.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	MarkBreached(ctx context.Context, id string) error
	ListForEvaluation(ctx context.Context) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
    id, ticket_number, ticket_type, status, priority, impact, urgency, category,
    title, description, requester_id, workflow_step, assigned_to, assigned_group,
    created_at, updated_at, first_response_at, resolved_at, closed_at,
    sla_policy_id, sla_response_due, sla_resolution_due, sla_breached, version,
    root_cause, workaround, known_error,
    change_type, risk_level, approval_status, implementation_plan, rollback_plan,
    scheduled_start, scheduled_end`

// Create inserts the ticket and assigns its human-readable number in one
// transaction. The counter upsert serializes concurrent creations of the
// same type/year, so numbers come out dense with no collisions.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	year := ticket.CreatedAt.Year()
	var seq int64
	const seqQuery = `
        INSERT INTO ticket_sequences (ticket_type, year, value)
        VALUES ($1, $2, 1)
        ON CONFLICT (ticket_type, year)
        DO UPDATE SET value = ticket_sequences.value + 1
        RETURNING value`
	if err := tx.QueryRow(ctx, seqQuery, ticket.Type, year).Scan(&seq); err != nil {
		return err
	}
	ticket.TicketNumber = fmt.Sprintf("%s-%d-%05d", ticket.Type.NumberPrefix(), year, seq)

	const insertQuery = `
        INSERT INTO tickets (
            ticket_number, ticket_type, status, priority, impact, urgency, category,
            title, description, requester_id, workflow_step, assigned_to, assigned_group,
            created_at, first_response_at,
            sla_policy_id, sla_response_due, sla_resolution_due, sla_breached,
            root_cause, workaround, known_error,
            change_type, risk_level, approval_status, implementation_plan, rollback_plan,
            scheduled_start, scheduled_end)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
                $20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
        RETURNING id, updated_at, version`
	if err := tx.QueryRow(ctx, insertQuery,
		ticket.TicketNumber,
		ticket.Type,
		ticket.Status,
		ticket.Priority,
		ticket.Impact,
		ticket.Urgency,
		ticket.Category,
		ticket.Title,
		ticket.Description,
		ticket.RequesterID,
		ticket.WorkflowStep,
		ticket.AssignedTo,
		ticket.AssignedGroup,
		ticket.CreatedAt,
		ticket.FirstResponseAt,
		ticket.SLAPolicyID,
		ticket.SLAResponseDue,
		ticket.SLAResolutionDue,
		ticket.SLABreached,
		ticket.RootCause,
		ticket.Workaround,
		ticket.KnownError,
		ticket.ChangeType,
		ticket.RiskLevel,
		ticket.ApprovalStatus,
		ticket.ImplementationPlan,
		ticket.RollbackPlan,
		ticket.ScheduledStart,
		ticket.ScheduledEnd,
	).Scan(&ticket.ID, &ticket.UpdatedAt, &ticket.Version); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1`
	return r.fetchSingle(ctx, query, number)
}

// Update persists lifecycle mutations with an optimistic version check.
// A stale version surfaces as CONCURRENT_MODIFICATION for the caller to
// retry.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET
            status=$1, workflow_step=$2, assigned_to=$3, assigned_group=$4,
            first_response_at=$5, resolved_at=$6, closed_at=$7,
            sla_policy_id=$8, sla_response_due=$9, sla_resolution_due=$10, sla_breached=$11,
            root_cause=$12, workaround=$13, known_error=$14,
            change_type=$15, risk_level=$16, approval_status=$17,
            implementation_plan=$18, rollback_plan=$19, scheduled_start=$20, scheduled_end=$21,
            version=version+1, updated_at=NOW()
        WHERE id=$22 AND version=$23
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.WorkflowStep,
		ticket.AssignedTo,
		ticket.AssignedGroup,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.SLAPolicyID,
		ticket.SLAResponseDue,
		ticket.SLAResolutionDue,
		ticket.SLABreached,
		ticket.RootCause,
		ticket.Workaround,
		ticket.KnownError,
		ticket.ChangeType,
		ticket.RiskLevel,
		ticket.ApprovalStatus,
		ticket.ImplementationPlan,
		ticket.RollbackPlan,
		ticket.ScheduledStart,
		ticket.ScheduledEnd,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewConcurrentModification(ticket.ID)
	}
	return err
}

// MarkBreached raises the sticky breach flag. It deliberately bypasses the
// version check: the flag is owned by the evaluator and only ever moves
// false -> true, so it cannot conflict with lifecycle writes.
func (r *ticketRepository) MarkBreached(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tickets SET sla_breached=TRUE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// ListForEvaluation returns open tickets carrying at least one SLA
// deadline, the evaluator's working set.
func (r *ticketRepository) ListForEvaluation(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status NOT IN ('resolved', 'closed', 'cancelled')
          AND (sla_response_due IS NOT NULL OR sla_resolution_due IS NOT NULL)
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketNumber,
			&ticket.Type,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Impact,
			&ticket.Urgency,
			&ticket.Category,
			&ticket.Title,
			&ticket.Description,
			&ticket.RequesterID,
			&ticket.WorkflowStep,
			&ticket.AssignedTo,
			&ticket.AssignedGroup,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.FirstResponseAt,
			&ticket.ResolvedAt,
			&ticket.ClosedAt,
			&ticket.SLAPolicyID,
			&ticket.SLAResponseDue,
			&ticket.SLAResolutionDue,
			&ticket.SLABreached,
			&ticket.Version,
			&ticket.RootCause,
			&ticket.Workaround,
			&ticket.KnownError,
			&ticket.ChangeType,
			&ticket.RiskLevel,
			&ticket.ApprovalStatus,
			&ticket.ImplementationPlan,
			&ticket.RollbackPlan,
			&ticket.ScheduledStart,
			&ticket.ScheduledEnd,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
