package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

func submit(t *testing.T, store *Store, owner, category, body string) (*domain.Ticket, bool) {
	t.Helper()
	ticket := &domain.Ticket{OwnerID: owner, Category: category, Description: body, Status: domain.TicketStatusOpen}
	msg := &domain.TicketMessage{SenderID: owner, SenderRole: domain.RoleUser, Body: body}
	created, err := store.Tickets().SubmitActive(context.Background(), ticket, msg)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, msg.TicketID)
	return ticket, created
}

func TestSubmitActiveAppendsToActiveTicket(t *testing.T) {
	store := NewStore()

	first, created := submit(t, store, "u1", "Billing", "Payment failed")
	require.True(t, created)

	second, created := submit(t, store, "u1", "Billing", "Still failing")
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, created = submit(t, store, "u1", "Shipping", "Late parcel")
	assert.True(t, created)

	thread, err := store.Messages().ListByTicket(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "Payment failed", thread[0].Body)
	assert.Equal(t, "Still failing", thread[1].Body)
}

func TestSubmitActiveIsAtomicUnderConcurrency(t *testing.T) {
	store := NewStore()
	const callers = 32

	var wg sync.WaitGroup
	ids := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket := &domain.Ticket{OwnerID: "u1", Category: "Billing", Description: "hi", Status: domain.TicketStatusOpen}
			msg := &domain.TicketMessage{SenderID: "u1", SenderRole: domain.RoleUser, Body: "hi"}
			_, err := store.Tickets().SubmitActive(context.Background(), ticket, msg)
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

	tickets, err := store.Tickets().List(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestResolveRejectsSecondActiveTicket(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	old, _ := submit(t, store, "u1", "Billing", "first")
	old.Status = domain.TicketStatusResolved
	require.NoError(t, store.Tickets().Resolve(ctx, old, nil, nil))

	_, created := submit(t, store, "u1", "Billing", "second")
	require.True(t, created)

	old.Status = domain.TicketStatusOpen
	msg := &domain.TicketMessage{SenderID: "admin", SenderRole: domain.RoleAdmin, Body: "reopening"}
	note := &domain.Notification{RecipientID: "u1", Title: "t", Body: "b", Kind: domain.NotificationKindInfo}
	assert.ErrorIs(t, store.Tickets().Resolve(ctx, old, msg, note), repository.ErrActiveTicketConflict)

	thread, err := store.Messages().ListByTicket(ctx, old.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 1)
	list, err := store.Notifications().ListByRecipient(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestResolveWritesMessageAndNotificationTogether(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	ticket, _ := submit(t, store, "u1", "Billing", "first")
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolutionNote = "Refund issued"
	msg := &domain.TicketMessage{SenderID: "admin", SenderRole: domain.RoleAdmin, Body: "Refund issued"}
	note := &domain.Notification{RecipientID: "u1", Title: "t", Body: "b", Kind: domain.NotificationKindSuccess, RelatedTicketID: ticket.ID}
	require.NoError(t, store.Tickets().Resolve(ctx, ticket, msg, note))

	stored, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	assert.Equal(t, "Refund issued", stored.ResolutionNote)

	thread, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, ticket.ID, msg.TicketID)
	assert.Equal(t, "Refund issued", thread[1].Body)

	list, err := store.Notifications().ListByRecipient(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, note.ID)

	missing := &domain.Ticket{ID: "missing", Status: domain.TicketStatusResolved}
	assert.ErrorIs(t, store.Tickets().Resolve(ctx, missing, nil, nil), pgx.ErrNoRows)
}

func TestUpsertUserKeepsStoredFields(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	users := store.Users()

	require.NoError(t, users.Upsert(ctx, &domain.User{ID: "v9", Email: "v9@example.com"}))
	user := &domain.User{ID: "v9", Name: "Vendor Nine"}
	require.NoError(t, users.Upsert(ctx, user))
	assert.Equal(t, "v9@example.com", user.Email)

	stored, err := users.GetByID(ctx, "v9")
	require.NoError(t, err)
	assert.Equal(t, "Vendor Nine", stored.Name)
	assert.Equal(t, "v9@example.com", stored.Email)

	require.NoError(t, users.Upsert(ctx, &domain.User{ID: "v9", Email: "new@example.com"}))
	stored, err = users.GetByID(ctx, "v9")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
}

func TestDeleteCascadesMessages(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	ticket, _ := submit(t, store, "u1", "Billing", "first")
	require.NoError(t, store.Tickets().Delete(ctx, ticket.ID))

	thread, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)
	assert.ErrorIs(t, store.Tickets().Delete(ctx, ticket.ID), pgx.ErrNoRows)

	_, err = store.Messages().LatestByTicket(ctx, ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestListOrdersByActivityAndPages(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store := NewStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	ctx := context.Background()

	a, _ := submit(t, store, "u1", "A", "a")
	b, _ := submit(t, store, "u1", "B", "b")
	submit(t, store, "u1", "A", "bump a")

	tickets, err := store.Tickets().List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, a.ID, tickets[0].ID)
	assert.Equal(t, b.ID, tickets[1].ID)

	tickets, err = store.Tickets().List(ctx, repository.TicketFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, b.ID, tickets[0].ID)

	category := "B"
	tickets, err = store.Tickets().List(ctx, repository.TicketFilter{Category: &category})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
}

func TestClearAndNotifications(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	ticket, _ := submit(t, store, "u1", "Billing", "first")
	submit(t, store, "u1", "Billing", "second")

	count, err := store.Messages().DeleteByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, store.Notifications().Create(ctx, &domain.Notification{RecipientID: "u1", Title: "one"}))
	require.NoError(t, store.Notifications().Create(ctx, &domain.Notification{RecipientID: "u1", Title: "two"}))
	require.NoError(t, store.Notifications().Create(ctx, &domain.Notification{RecipientID: "u2", Title: "other"}))

	list, err := store.Notifications().ListByRecipient(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Title)

	store.PutUser(domain.User{ID: "u1", Email: "u1@example.com"})
	user, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.HasEmail())
	_, err = store.Users().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
