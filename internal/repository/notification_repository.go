package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// NotificationRepository stores notifications for later retrieval.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return insertNotification(ctx, r.pool, n)
}

func insertNotification(ctx context.Context, q execQuerier, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, title, body, kind, related_ticket_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return q.QueryRow(ctx, query,
		n.RecipientID,
		n.Title,
		n.Body,
		n.Kind,
		n.RelatedTicketID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	limit, offset = normalizePage(limit, offset)
	const query = `
        SELECT id, recipient_id, title, body, kind, related_ticket_id, created_at
        FROM notifications WHERE recipient_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Title,
			&n.Body,
			&n.Kind,
			&n.RelatedTicketID,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
