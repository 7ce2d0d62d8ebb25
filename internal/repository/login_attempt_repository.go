package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskline/helpdesk/internal/domain"
)

// LoginAttemptRepository is the append-only sign-in audit log.
type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.LoginAttempt) error
	ListRecent(ctx context.Context, limit int) ([]domain.LoginAttempt, error)
}

type loginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository constructs repository.
func NewLoginAttemptRepository(pool *pgxpool.Pool) LoginAttemptRepository {
	return &loginAttemptRepository{pool: pool}
}

func (r *loginAttemptRepository) Create(ctx context.Context, attempt *domain.LoginAttempt) error {
	const query = `
        INSERT INTO login_attempts (email, agent_id, success, reason, ip_address, user_agent)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		attempt.Email,
		attempt.AgentID,
		attempt.Success,
		attempt.Reason,
		attempt.IPAddress,
		attempt.UserAgent,
	).Scan(&attempt.ID, &attempt.CreatedAt)
}

func (r *loginAttemptRepository) ListRecent(ctx context.Context, limit int) ([]domain.LoginAttempt, error) {
	const query = `
        SELECT id, email, agent_id, success, reason, ip_address, user_agent, created_at
        FROM login_attempts ORDER BY created_at DESC LIMIT $1`
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(
			&a.ID,
			&a.Email,
			&a.AgentID,
			&a.Success,
			&a.Reason,
			&a.IPAddress,
			&a.UserAgent,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
