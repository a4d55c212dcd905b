package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	LatestByTicket(ctx context.Context, ticketID string) (*domain.TicketMessage, error)
	DeleteByTicket(ctx context.Context, ticketID string) (int64, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

// execQuerier is satisfied by both the pool and a transaction.
type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertMessage(ctx context.Context, q execQuerier, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_id, sender_role, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return q.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.SenderRole,
		msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	return insertMessage(ctx, r.pool, msg)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	if !isTicketID(ticketID) {
		return []domain.TicketMessage{}, nil
	}
	const query = `
        SELECT id, ticket_id, sender_id, sender_role, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketMessage{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func (r *ticketMessageRepository) LatestByTicket(ctx context.Context, ticketID string) (*domain.TicketMessage, error) {
	if !isTicketID(ticketID) {
		return nil, pgx.ErrNoRows
	}
	const query = `
        SELECT id, ticket_id, sender_id, sender_role, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at DESC, seq DESC LIMIT 1`
	return scanMessage(r.pool.QueryRow(ctx, query, ticketID))
}

func (r *ticketMessageRepository) DeleteByTicket(ctx context.Context, ticketID string) (int64, error) {
	if !isTicketID(ticketID) {
		return 0, nil
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM ticket_messages WHERE ticket_id=$1`, ticketID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (*domain.TicketMessage, error) {
	var msg domain.TicketMessage
	if err := row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderID,
		&msg.SenderRole,
		&msg.Body,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}
