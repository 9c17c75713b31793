package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// SLABreachRepository stores the append-only breach audit trail.
type SLABreachRepository interface {
	Record(ctx context.Context, breach *domain.SLABreach) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SLABreach, error)
}

type slaBreachRepository struct {
	pool *pgxpool.Pool
}

// NewSLABreachRepository instantiates repository.
func NewSLABreachRepository(pool *pgxpool.Pool) SLABreachRepository {
	return &slaBreachRepository{pool: pool}
}

// Record writes at most one row per (ticket, breach type). Re-recording an
// existing breach keeps the original actual_time and duration, making the
// write idempotent across evaluator runs.
func (r *slaBreachRepository) Record(ctx context.Context, breach *domain.SLABreach) error {
	const query = `
        INSERT INTO sla_breaches (ticket_id, sla_policy_id, breach_type, target_time, actual_time, breach_duration_minutes)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (ticket_id, breach_type) DO UPDATE SET
            actual_time = COALESCE(sla_breaches.actual_time, EXCLUDED.actual_time),
            breach_duration_minutes = COALESCE(sla_breaches.breach_duration_minutes, EXCLUDED.breach_duration_minutes)
        RETURNING id, actual_time, breach_duration_minutes, created_at`
	return r.pool.QueryRow(ctx, query,
		breach.TicketID,
		breach.SLAPolicyID,
		breach.BreachType,
		breach.TargetTime,
		breach.ActualTime,
		breach.BreachDurationMinutes,
	).Scan(&breach.ID, &breach.ActualTime, &breach.BreachDurationMinutes, &breach.CreatedAt)
}

func (r *slaBreachRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SLABreach, error) {
	const query = `
        SELECT id, ticket_id, sla_policy_id, breach_type, target_time, actual_time, breach_duration_minutes, created_at
        FROM sla_breaches WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLABreach
	for rows.Next() {
		var breach domain.SLABreach
		if err := rows.Scan(
			&breach.ID,
			&breach.TicketID,
			&breach.SLAPolicyID,
			&breach.BreachType,
			&breach.TargetTime,
			&breach.ActualTime,
			&breach.BreachDurationMinutes,
			&breach.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, breach)
	}
	return result, rows.Err()
}
