package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures search parameters for ticket listings.
type TicketFilter struct {
	OwnerID    *string
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     *string
	Limit      int
	Offset     int
}

// TicketStats holds aggregate counts for the stats endpoint.
type TicketStats struct {
	Total      int64
	Open       int64
	InProgress int64
	Resolved   int64
	Closed     int64
	Urgent     int64
	High       int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists the ticket only if its stored status still matches
	// expectedStatus, so concurrent transitions surface as pgx.ErrNoRows
	// instead of silently overwriting each other.
	Update(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error)
	Statistics(ctx context.Context, ownerID *string) (*TicketStats, error)
	DeleteCascade(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, description, status, priority, owner_id, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.OwnerID,
		ticket.AssigneeID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, assignee_id=$5,
            rating_score=$6, rating_feedback=$7, rated_at=$8, updated_at=NOW()
        WHERE id=$9 AND status=$10`
	var (
		score    *int
		feedback *string
		ratedAt  *time.Time
	)
	if ticket.Rating != nil {
		score = &ticket.Rating.Score
		feedback = &ticket.Rating.Feedback
		ratedAt = &ticket.Rating.RatedAt
	}
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
		score,
		feedback,
		ratedAt,
		ticket.ID,
		expectedStatus,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const ticketColumns = `id, subject, description, status, priority, owner_id, assignee_id,
               rating_score, rating_feedback, rated_at, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		args = append(args, strings.TrimSpace(*filter.Search))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(subject ~* %s OR description ~* %s)", placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) Statistics(ctx context.Context, ownerID *string) (*TicketStats, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='open'),
               COUNT(*) FILTER (WHERE status='in-progress'),
               COUNT(*) FILTER (WHERE status='resolved'),
               COUNT(*) FILTER (WHERE status='closed'),
               COUNT(*) FILTER (WHERE priority='urgent'),
               COUNT(*) FILTER (WHERE priority='high')
        FROM tickets`
	args := []any{}
	if ownerID != nil {
		query += ` WHERE owner_id=$1`
		args = append(args, *ownerID)
	}

	var stats TicketStats
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Open,
		&stats.InProgress,
		&stats.Resolved,
		&stats.Closed,
		&stats.Urgent,
		&stats.High,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DeleteCascade removes the ticket and everything keyed to it in a single
// transaction, so no orphan comments survive a partial failure.
func (r *ticketRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE ticket_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM attachments WHERE ticket_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM ticket_status_history WHERE ticket_id=$1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		score    *int
		feedback *string
		ratedAt  *time.Time
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.OwnerID,
		&ticket.AssigneeID,
		&score,
		&feedback,
		&ratedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if score != nil && ratedAt != nil {
		rating := domain.Rating{Score: *score, RatedAt: *ratedAt}
		if feedback != nil {
			rating.Feedback = *feedback
		}
		ticket.Rating = &rating
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
