package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ErrActiveTicketConflict is returned when a write would leave two active tickets for
// the same owner and category.
var ErrActiveTicketConflict = errors.New("an active ticket already exists for this owner and category")

const (
	uniqueViolation     = "23505"
	maxSubmitAttempts   = 3
	activeTicketIndex   = "tickets_one_active_per_owner_category"
	ticketSelectColumns = `id, owner_id, category, priority, description, status, resolution_note,
               target_id, created_at, last_activity_at`
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	OwnerID  *string
	Category *string
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// SubmitActive appends msg to the owner's active ticket for ticket.Category, or
	// creates ticket with msg as its first message when none exists. It reports whether
	// a ticket was created and leaves the stored ticket in *ticket.
	SubmitActive(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) (bool, error)
	// Resolve stores ticket's status, note and priority together with the optional
	// thread message and owner notification, all or nothing.
	Resolve(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) SubmitActive(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) (bool, error) {
	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		created, err := r.submitOnce(ctx, ticket, msg)
		if isUniqueViolation(err) {
			continue
		}
		return created, err
	}
	return false, ErrActiveTicketConflict
}

func (r *ticketRepository) submitOnce(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) (created bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Serializes concurrent submissions for the same owner and category.
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticket.OwnerID+"|"+ticket.Category); err != nil {
		return false, err
	}

	const findActive = `
        SELECT ` + ticketSelectColumns + `
        FROM tickets
        WHERE owner_id=$1 AND category=$2 AND status IN ('open','in-progress')
        LIMIT 1`
	existing, err := scanTicket(tx.QueryRow(ctx, findActive, ticket.OwnerID, ticket.Category))
	switch {
	case err == nil:
		msg.TicketID = existing.ID
		if err = insertMessage(ctx, tx, msg); err != nil {
			return false, err
		}
		const touch = `UPDATE tickets SET last_activity_at=NOW() WHERE id=$1 RETURNING last_activity_at`
		if err = tx.QueryRow(ctx, touch, existing.ID).Scan(&existing.LastActivityAt); err != nil {
			return false, err
		}
		*ticket = *existing
	case errors.Is(err, pgx.ErrNoRows):
		const insert = `
            INSERT INTO tickets (owner_id, category, priority, description, status, resolution_note, target_id)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            RETURNING id, created_at, last_activity_at`
		if err = tx.QueryRow(ctx, insert,
			ticket.OwnerID,
			ticket.Category,
			ticket.Priority,
			ticket.Description,
			ticket.Status,
			ticket.ResolutionNote,
			ticket.TargetID,
		).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.LastActivityAt); err != nil {
			return false, err
		}
		msg.TicketID = ticket.ID
		if err = insertMessage(ctx, tx, msg); err != nil {
			return false, err
		}
		created = true
	default:
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return created, nil
}

func (r *ticketRepository) Resolve(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage, n *domain.Notification) (err error) {
	if !isTicketID(ticket.ID) {
		return pgx.ErrNoRows
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const query = `
        UPDATE tickets SET status=$1, resolution_note=$2, priority=$3
        WHERE id=$4`
	cmd, err := tx.Exec(ctx, query,
		ticket.Status,
		ticket.ResolutionNote,
		ticket.Priority,
		ticket.ID,
	)
	if isUniqueViolation(err) {
		return ErrActiveTicketConflict
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if msg != nil {
		msg.TicketID = ticket.ID
		if err = insertMessage(ctx, tx, msg); err != nil {
			return err
		}
	}
	if n != nil {
		if err = insertNotification(ctx, tx, n); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !isTicketID(id) {
		return nil, pgx.ErrNoRows
	}
	const query = `SELECT ` + ticketSelectColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

// Delete removes the ticket; ticket_messages rows go with it through ON DELETE CASCADE.
func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	if !isTicketID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY last_activity_at DESC, id LIMIT %d OFFSET %d`,
		ticketSelectColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Description,
		&ticket.Status,
		&ticket.ResolutionNote,
		&ticket.TargetID,
		&ticket.CreatedAt,
		&ticket.LastActivityAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// isTicketID filters ids the uuid column would reject with a syntax error.
func isTicketID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeTicketIndex
}

// DefaultPageSize applies when a caller passes no limit.
const DefaultPageSize = 50

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
