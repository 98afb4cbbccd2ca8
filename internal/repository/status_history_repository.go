package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// StatusHistoryRepository stores the append-only transition audit trail.
type StatusHistoryRepository interface {
	Create(ctx context.Context, entry *domain.StatusHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusHistory, error)
}

type statusHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStatusHistoryRepository builds repository.
func NewStatusHistoryRepository(pool *pgxpool.Pool) StatusHistoryRepository {
	return &statusHistoryRepository{pool: pool}
}

func (r *statusHistoryRepository) Create(ctx context.Context, entry *domain.StatusHistory) error {
	const query = `
        INSERT INTO ticket_status_history (ticket_id, status, changed_by)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.Status,
		entry.ChangedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *statusHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusHistory, error) {
	const query = `
        SELECT id, ticket_id, status, changed_by, created_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistory
	for rows.Next() {
		var entry domain.StatusHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Status,
			&entry.ChangedBy,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
