package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itsm-core/internal/domain"
)

// SLAPolicyRepository reads SLA policies. Policies are administered by
// collaborators; the core only ever reads them.
type SLAPolicyRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.SLAPolicy, error)
	ListActive(ctx context.Context) ([]domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository instantiates repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

const policyColumns = `
    id, name, ticket_type, priority, impact, urgency, category,
    response_time_minutes, resolution_time_minutes,
    business_hours_only, business_start, business_end, business_days,
    is_active, created_at`

func (r *slaPolicyRepository) GetByID(ctx context.Context, id int64) (*domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	policies, err := scanPolicies(rows)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &policies[0], nil
}

func (r *slaPolicyRepository) ListActive(ctx context.Context) ([]domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE is_active ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func scanPolicies(rows pgx.Rows) ([]domain.SLAPolicy, error) {
	var result []domain.SLAPolicy
	for rows.Next() {
		var (
			policy domain.SLAPolicy
			days   []int32
		)
		if err := rows.Scan(
			&policy.ID,
			&policy.Name,
			&policy.TicketType,
			&policy.Priority,
			&policy.Impact,
			&policy.Urgency,
			&policy.Category,
			&policy.ResponseTimeMinutes,
			&policy.ResolutionTimeMinutes,
			&policy.BusinessHoursOnly,
			&policy.BusinessStart,
			&policy.BusinessEnd,
			&days,
			&policy.IsActive,
			&policy.CreatedAt,
		); err != nil {
			return nil, err
		}
		policy.BusinessDays = make([]time.Weekday, 0, len(days))
		for _, d := range days {
			policy.BusinessDays = append(policy.BusinessDays, time.Weekday(d))
		}
		result = append(result, policy)
	}
	return result, rows.Err()
}
