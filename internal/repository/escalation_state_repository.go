package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// EscalationStateRepository persists the last escalation level notified per
// ticket. RaiseLevel is a compare-and-set: it succeeds only when the new
// level is strictly greater than what is stored, which makes it the
// serialization point for overlapping evaluator runs.
type EscalationStateRepository interface {
	Get(ctx context.Context, ticketID string) (*domain.EscalationState, error)
	RaiseLevel(ctx context.Context, ticketID string, level domain.EscalationLevel, at time.Time) (bool, error)
}

type escalationStateRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationStateRepository instantiates repository.
func NewEscalationStateRepository(pool *pgxpool.Pool) EscalationStateRepository {
	return &escalationStateRepository{pool: pool}
}

func (r *escalationStateRepository) Get(ctx context.Context, ticketID string) (*domain.EscalationState, error) {
	const query = `
        SELECT ticket_id, last_level_notified, last_notified_at
        FROM escalation_state WHERE ticket_id=$1`
	var state domain.EscalationState
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&state.TicketID,
		&state.LastLevelNotified,
		&state.LastNotifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.EscalationState{TicketID: ticketID, LastLevelNotified: domain.EscalationLevelSafe}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// RaiseLevel wins only when level strictly exceeds the stored value; losing
// the race returns false and the caller must not notify.
func (r *escalationStateRepository) RaiseLevel(ctx context.Context, ticketID string, level domain.EscalationLevel, at time.Time) (bool, error) {
	const query = `
        INSERT INTO escalation_state (ticket_id, last_level_notified, last_notified_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (ticket_id) DO UPDATE SET
            last_level_notified = EXCLUDED.last_level_notified,
            last_notified_at = EXCLUDED.last_notified_at
        WHERE escalation_state.last_level_notified < EXCLUDED.last_level_notified`
	cmd, err := r.pool.Exec(ctx, query, ticketID, level, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
