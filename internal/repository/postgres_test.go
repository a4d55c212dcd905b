package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
)

// testPool connects to TEST_POSTGRES_DSN and applies the schema. Tests using it are
// skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = persistence.RunMigrations(ctx, pool, filepath.Join("..", "..", "migrations"), zap.NewNop())
	require.NoError(t, err)
	return pool
}

func newSubmission(owner, category, body string) (*domain.Ticket, *domain.TicketMessage) {
	return &domain.Ticket{
			OwnerID:     owner,
			Category:    category,
			Priority:    domain.DefaultPriority,
			Description: body,
			Status:      domain.TicketStatusOpen,
		}, &domain.TicketMessage{
			SenderID:   owner,
			SenderRole: domain.RoleUser,
			Body:       body,
		}
}

func TestPostgresSubmitActiveFindsOrCreates(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	messages := repository.NewTicketMessageRepository(pool)
	owner := "owner-" + uuid.NewString()

	first, msg := newSubmission(owner, "Billing", "Payment failed")
	created, err := tickets.SubmitActive(ctx, first, msg)
	require.NoError(t, err)
	require.True(t, created)

	second, msg := newSubmission(owner, "Billing", "Still failing")
	created, err = tickets.SubmitActive(ctx, second, msg)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	thread, err := messages.ListByTicket(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "Payment failed", thread[0].Body)
	assert.Equal(t, "Still failing", thread[1].Body)

	latest, err := messages.LatestByTicket(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Still failing", latest.Body)
}

func TestPostgresConcurrentSubmitsShareOneTicket(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	owner := "owner-" + uuid.NewString()

	const callers = 8
	var wg sync.WaitGroup
	ids := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, msg := newSubmission(owner, "Billing", "hi")
			_, err := tickets.SubmitActive(ctx, ticket, msg)
			assert.NoError(t, err)
			ids <- ticket.ID
		}()
	}
	wg.Wait()
	close(ids)

	unique := map[string]struct{}{}
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 1)
}

func TestPostgresReopenConflictAndCascade(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	messages := repository.NewTicketMessageRepository(pool)
	owner := "owner-" + uuid.NewString()

	old, msg := newSubmission(owner, "Billing", "first")
	_, err := tickets.SubmitActive(ctx, old, msg)
	require.NoError(t, err)
	old.Status = domain.TicketStatusResolved
	require.NoError(t, tickets.Resolve(ctx, old, nil, nil))

	fresh, msg := newSubmission(owner, "Billing", "second")
	created, err := tickets.SubmitActive(ctx, fresh, msg)
	require.NoError(t, err)
	require.True(t, created)

	old.Status = domain.TicketStatusOpen
	assert.ErrorIs(t, tickets.Resolve(ctx, old, nil, nil), repository.ErrActiveTicketConflict)

	require.NoError(t, tickets.Delete(ctx, fresh.ID))
	thread, err := messages.ListByTicket(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)
	_, err = tickets.GetByID(ctx, fresh.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestPostgresResolveIsAllOrNothing(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	messages := repository.NewTicketMessageRepository(pool)
	notifications := repository.NewNotificationRepository(pool)
	owner := "owner-" + uuid.NewString()

	ticket, msg := newSubmission(owner, "Billing", "first")
	_, err := tickets.SubmitActive(ctx, ticket, msg)
	require.NoError(t, err)

	ticket.Status = domain.TicketStatusResolved
	ticket.ResolutionNote = "Refund issued"
	note := &domain.TicketMessage{SenderID: "admin", SenderRole: domain.RoleAdmin, Body: "Refund issued"}
	n := &domain.Notification{RecipientID: owner, Title: "t", Body: "b", Kind: domain.NotificationKindSuccess, RelatedTicketID: ticket.ID}
	require.NoError(t, tickets.Resolve(ctx, ticket, note, n))

	thread, err := messages.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 2)

	// A rejected write must not leave the thread message behind.
	fresh, msg := newSubmission(owner, "Billing", "second")
	_, err = tickets.SubmitActive(ctx, fresh, msg)
	require.NoError(t, err)
	ticket.Status = domain.TicketStatusOpen
	reopenNote := &domain.TicketMessage{SenderID: "admin", SenderRole: domain.RoleAdmin, Body: "reopening"}
	assert.ErrorIs(t, tickets.Resolve(ctx, ticket, reopenNote, nil), repository.ErrActiveTicketConflict)

	thread, err = messages.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 2)
	list, err := notifications.ListByRecipient(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPostgresUpsertUser(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	id := "user-" + uuid.NewString()

	require.NoError(t, users.Upsert(ctx, &domain.User{ID: id, Email: "v9@example.com"}))
	user := &domain.User{ID: id, Name: "Vendor Nine"}
	require.NoError(t, users.Upsert(ctx, user))
	assert.Equal(t, "v9@example.com", user.Email)

	stored, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Vendor Nine", stored.Name)
	assert.Equal(t, "v9@example.com", stored.Email)
}

func TestMalformedTicketIDsReadAsMissing(t *testing.T) {
	ctx := context.Background()
	// A nil pool proves the guard answers before any query is sent.
	tickets := repository.NewTicketRepository(nil)
	messages := repository.NewTicketMessageRepository(nil)

	_, err := tickets.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, tickets.Delete(ctx, "not-a-uuid"), pgx.ErrNoRows)

	thread, err := messages.ListByTicket(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Empty(t, thread)

	_, err = messages.LatestByTicket(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	count, err := messages.DeleteByTicket(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Zero(t, count)
}
