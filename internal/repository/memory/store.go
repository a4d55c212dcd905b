// Package memory keeps tickets, threads and notifications in process memory. It backs
// the service when no database is configured and is the store used by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Store holds all records under one lock so multi-record operations are atomic.
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	tickets       map[string]*domain.Ticket
	messages      map[string][]domain.TicketMessage
	notifications []domain.Notification
	users         map[string]domain.User
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:      time.Now,
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]domain.TicketMessage),
		users:    make(map[string]domain.User),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// PutUser registers an account that tickets can be owned by.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// Tickets exposes the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Messages exposes the thread repository view.
func (s *Store) Messages() repository.TicketMessageRepository { return messageRepo{s} }

// Notifications exposes the notification repository view.
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }

// Users exposes the owner directory view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

type ticketRepo struct{ s *Store }

func (r ticketRepo) SubmitActive(_ context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing := s.activeLocked(ticket.OwnerID, ticket.Category, ""); existing != nil {
		msg.TicketID = existing.ID
		s.appendLocked(msg, now)
		existing.LastActivityAt = now
		*ticket = *existing
		return false, nil
	}

	stored := *ticket
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.LastActivityAt = now
	s.tickets[stored.ID] = &stored
	msg.TicketID = stored.ID
	s.appendLocked(msg, now)
	*ticket = stored
	return true, nil
}

func (r ticketRepo) Resolve(_ context.Context, ticket *domain.Ticket, msg *domain.TicketMessage, n *domain.Notification) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if ticket.Status.IsActive() && s.activeLocked(current.OwnerID, current.Category, current.ID) != nil {
		return repository.ErrActiveTicketConflict
	}
	current.Status = ticket.Status
	current.ResolutionNote = ticket.ResolutionNote
	current.Priority = ticket.Priority

	now := s.now()
	if msg != nil {
		msg.TicketID = current.ID
		s.appendLocked(msg, now)
	}
	if n != nil {
		s.notifyLocked(n, now)
	}
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r ticketRepo) Delete(_ context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.tickets, id)
	delete(s.messages, id)
	return nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

func (s *Store) activeLocked(ownerID, category, excludeID string) *domain.Ticket {
	for id, ticket := range s.tickets {
		if id == excludeID {
			continue
		}
		if ticket.OwnerID == ownerID && ticket.Category == category && ticket.Status.IsActive() {
			return ticket
		}
	}
	return nil
}

func (s *Store) appendLocked(msg *domain.TicketMessage, now time.Time) {
	msg.ID = uuid.NewString()
	msg.CreatedAt = now
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], *msg)
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[msg.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	s.appendLocked(msg, s.now())
	return nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := append([]domain.TicketMessage{}, s.messages[ticketID]...)
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return thread, nil
}

func (r messageRepo) LatestByTicket(ctx context.Context, ticketID string) (*domain.TicketMessage, error) {
	thread, _ := r.ListByTicket(ctx, ticketID)
	if len(thread) == 0 {
		return nil, pgx.ErrNoRows
	}
	latest := thread[len(thread)-1]
	return &latest, nil
}

func (r messageRepo) DeleteByTicket(_ context.Context, ticketID string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(len(s.messages[ticketID]))
	delete(s.messages, ticketID)
	return count, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifyLocked(n, s.now())
	return nil
}

func (s *Store) notifyLocked(n *domain.Notification, now time.Time) {
	n.ID = uuid.NewString()
	n.CreatedAt = now
	s.notifications = append(s.notifications, *n)
}

func (r notificationRepo) ListByRecipient(_ context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []domain.Notification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].RecipientID == recipientID {
			result = append(result, s.notifications[i])
		}
	}
	return page(result, limit, offset), nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) Upsert(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.users[user.ID]
	stored.ID = user.ID
	if user.Name != "" {
		stored.Name = user.Name
	}
	if user.Email != "" {
		stored.Email = user.Email
	}
	s.users[user.ID] = stored
	*user = stored
	return nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
