package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// EmailSink delivers outbound email.
type EmailSink interface {
	SendAdminAlert(ctx context.Context, ticket *domain.Ticket, owner *domain.User) error
	// SendVendorReply reports failure in the result instead of an error so callers can
	// surface it to the admin.
	SendVendorReply(ctx context.Context, toEmail, toName, body, ticketID string) domain.DeliveryResult
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets       repository.TicketRepository
	messages      repository.TicketMessageRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
	guard         *auth.Guard
	bridge        *MailboxBridge
	email         EmailSink
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	MessageRepo      repository.TicketMessageRepository
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Guard            *auth.Guard
	Bridge           *MailboxBridge
	Email            EmailSink
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// Page bounds list results.
type Page struct {
	Limit  int
	Offset int
}

// SubmitInput describes a ticket submission.
type SubmitInput struct {
	Category    string
	Priority    string
	Description string
	TargetID    *string
}

// ReplyResult is returned by ReplyToTicket.
type ReplyResult struct {
	Success bool
	Message string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := deps.Guard
	if guard == nil {
		guard = auth.NewGuard()
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		messages:      deps.MessageRepo,
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		guard:         guard,
		bridge:        deps.Bridge,
		email:         deps.Email,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
	}
}

// ListAllTickets returns every ticket with a preview of its latest message. Admin only.
func (s *TicketService) ListAllTickets(ctx context.Context, principal domain.Principal, page Page) ([]domain.TicketOverview, error) {
	if err := s.guard.RequireAdmin(principal); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, err
	}

	result := make([]domain.TicketOverview, 0, len(tickets))
	for _, ticket := range tickets {
		overview := domain.TicketOverview{Ticket: ticket, LatestMessage: ticket.Description}
		latest, err := s.messages.LatestByTicket(ctx, ticket.ID)
		switch {
		case err == nil:
			overview.LatestMessage = latest.Body
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
		result = append(result, overview)
	}
	return result, nil
}

// ListOwnTickets returns the caller's tickets, most recently active first.
func (s *TicketService) ListOwnTickets(ctx context.Context, principal domain.Principal, page Page) ([]domain.Ticket, error) {
	if principal.ID == "" {
		return nil, apperrors.NewUnauthorized("principal required")
	}
	return s.tickets.List(ctx, repository.TicketFilter{
		OwnerID: &principal.ID,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

// ListTicketsForOwner returns tickets of ownerID, optionally narrowed to one category.
// Admins may list anyone; others only themselves. A zero page.Limit returns every match.
func (s *TicketService) ListTicketsForOwner(ctx context.Context, principal domain.Principal, ownerID, category string, page Page) ([]domain.Ticket, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner id required", nil)
	}
	if !s.guard.CanActFor(principal, ownerID) {
		return nil, apperrors.NewForbidden("access denied")
	}
	filter := repository.TicketFilter{OwnerID: &ownerID, Limit: page.Limit, Offset: page.Offset}
	if category = strings.TrimSpace(category); category != "" {
		filter.Category = &category
	}
	if page.Limit > 0 {
		return s.tickets.List(ctx, filter)
	}
	return s.listAll(ctx, filter)
}

// listAll walks filter in DefaultPageSize batches until a short batch.
func (s *TicketService) listAll(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	filter.Limit = repository.DefaultPageSize
	result := []domain.Ticket{}
	for {
		batch, err := s.tickets.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		result = append(result, batch...)
		if len(batch) < filter.Limit {
			return result, nil
		}
		filter.Offset += len(batch)
	}
}

// SubmitTicket files a ticket, or appends the description to the caller's active
// ticket in the same category. created is false in the latter case.
func (s *TicketService) SubmitTicket(ctx context.Context, principal domain.Principal, input SubmitInput) (*domain.Ticket, bool, error) {
	if principal.ID == "" {
		return nil, false, apperrors.NewUnauthorized("principal required")
	}
	category := strings.TrimSpace(input.Category)
	description := strings.TrimSpace(input.Description)
	missing := map[string]any{}
	if category == "" {
		missing["category"] = "required"
	}
	if description == "" {
		missing["description"] = "required"
	}
	if len(missing) > 0 {
		return nil, false, apperrors.NewValidationError("category and description required", missing)
	}
	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = domain.DefaultPriority
	}

	ticket := &domain.Ticket{
		OwnerID:     principal.ID,
		Category:    category,
		Priority:    priority,
		Description: description,
		Status:      domain.TicketStatusOpen,
		TargetID:    input.TargetID,
	}
	msg := &domain.TicketMessage{
		SenderID:   principal.ID,
		SenderRole: domain.RoleUser,
		Body:       description,
	}

	s.rememberOwner(ctx, principal)

	created, err := s.tickets.SubmitActive(ctx, ticket, msg)
	if errors.Is(err, repository.ErrActiveTicketConflict) {
		return nil, false, apperrors.NewConflict("ticket submission is already in progress", nil)
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    actorFor(principal, domain.RoleUser),
			Payload:  events.TicketCreatedPayload{Ticket: *ticket},
		})
	} else {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketFollowUp,
			TicketID: ticket.ID,
			Actor:    actorFor(principal, domain.RoleUser),
			Payload:  messagePayload(msg),
		})
	}
	return ticket, created, nil
}

// ReplyToTicket emails body to the ticket owner and records it in the thread. Admin
// only. The request fails when the email cannot be delivered.
func (s *TicketService) ReplyToTicket(ctx context.Context, principal domain.Principal, ticketID, body string) (*ReplyResult, error) {
	if err := s.guard.RequireAdmin(principal); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("reply body required", map[string]any{"body": "required"})
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, ticket.OwnerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if !owner.HasEmail() {
		return nil, apperrors.NewValidationError("vendor email not found", map[string]any{"owner_id": ticket.OwnerID})
	}

	if s.email == nil {
		return nil, apperrors.NewDependencyFailure("email delivery is not configured", nil)
	}
	result := s.email.SendVendorReply(ctx, owner.Email, owner.Name, body, ticket.ID)
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "failed to send reply email"
		}
		return nil, apperrors.NewDependencyFailure(message, nil)
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		SenderID:   principal.ID,
		SenderRole: domain.RoleAdmin,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.bridge.Mirror(ctx, principal, ticket, body)

	if err := s.notifications.Create(ctx, BuildReplyNotification(ticket, body)); err != nil {
		s.logger.Warn("persist reply notification", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReplied,
		TicketID: ticket.ID,
		Actor:    actorFor(principal, domain.RoleAdmin),
		Payload:  messagePayload(msg),
	})
	return &ReplyResult{Success: true, Message: "Reply sent successfully"}, nil
}

// ResolveTicket sets status and resolution note. Admin only. A call that changes
// neither returns the stored ticket untouched.
func (s *TicketService) ResolveTicket(ctx context.Context, principal domain.Principal, ticketID, status, note string) (*domain.Ticket, error) {
	if err := s.guard.RequireAdmin(principal); err != nil {
		return nil, err
	}
	newStatus, ok := domain.ParseTicketStatus(status)
	if !ok {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	old, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	updated := *old
	updated.Status = newStatus
	updated.ResolutionNote = strings.TrimSpace(note)
	diff := diffTicket(old, &updated)
	if !diff.changed() {
		return old, nil
	}

	var msg *domain.TicketMessage
	if diff.noteChanged && updated.ResolutionNote != "" {
		msg = &domain.TicketMessage{
			TicketID:   updated.ID,
			SenderID:   principal.ID,
			SenderRole: domain.RoleAdmin,
			Body:       updated.ResolutionNote,
		}
	}
	notification := BuildStatusNotification(old, &updated)

	if err := s.tickets.Resolve(ctx, &updated, msg, notification); err != nil {
		if errors.Is(err, repository.ErrActiveTicketConflict) {
			return nil, apperrors.NewConflict("owner already has an active ticket in this category", map[string]any{"category": updated.Category})
		}
		return nil, notFoundTicket(err, updated.ID)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		Actor:    actorFor(principal, domain.RoleAdmin),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:      old.Status,
			NewStatus:      updated.Status,
			ResolutionNote: updated.ResolutionNote,
			Notified:       notification != nil,
		},
	})
	return &updated, nil
}

// DeleteTicket removes a ticket and its thread. Notifications that mention it stay.
func (s *TicketService) DeleteTicket(ctx context.Context, principal domain.Principal, ticketID string) error {
	if err := s.guard.RequireAdmin(principal); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return notFoundTicket(err, ticketID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    actorFor(principal, domain.RoleAdmin),
	})
	return nil
}

// ListMessages returns the ticket thread oldest first.
func (s *TicketService) ListMessages(ctx context.Context, principal domain.Principal, ticketID string) ([]domain.TicketMessage, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(principal, ticket); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticket.ID)
}

// AppendMessage adds body to the thread as the caller. Admin messages on the mirrored
// category are copied into the vendor mailbox.
func (s *TicketService) AppendMessage(ctx context.Context, principal domain.Principal, ticketID, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", map[string]any{"body": "required"})
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(principal, ticket); err != nil {
		return nil, err
	}

	role := s.guard.SenderRole(principal)
	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		SenderID:   principal.ID,
		SenderRole: role,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, notFoundTicket(err, ticket.ID)
	}
	if role == domain.RoleAdmin {
		s.bridge.Mirror(ctx, principal, ticket, body)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorFor(principal, role),
		Payload:  messagePayload(msg),
	})
	return msg, nil
}

// ClearMessages empties the thread but keeps the ticket.
func (s *TicketService) ClearMessages(ctx context.Context, principal domain.Principal, ticketID string) (int64, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return 0, err
	}
	if err := s.guard.Authorize(principal, ticket); err != nil {
		return 0, err
	}
	count, err := s.messages.DeleteByTicket(ctx, ticket.ID)
	if err != nil {
		return 0, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventThreadCleared,
		TicketID: ticket.ID,
		Actor:    actorFor(principal, s.guard.SenderRole(principal)),
		Payload:  events.ThreadClearedPayload{DeletedCount: count},
	})
	return count, nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *TicketService) ListNotifications(ctx context.Context, principal domain.Principal, page Page) ([]domain.Notification, error) {
	if principal.ID == "" {
		return nil, apperrors.NewUnauthorized("principal required")
	}
	return s.notifications.ListByRecipient(ctx, principal.ID, page.Limit, page.Offset)
}

// rememberOwner records the caller's token identity in the owner directory so replies,
// mirroring and admin alerts can reach them. Failures are logged only.
func (s *TicketService) rememberOwner(ctx context.Context, principal domain.Principal) {
	owner := &domain.User{ID: principal.ID, Email: strings.TrimSpace(principal.Email)}
	if err := s.users.Upsert(ctx, owner); err != nil {
		s.logger.Warn("record ticket owner", zap.String("owner_id", principal.ID), zap.Error(err))
	}
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundTicket(err, ticketID)
	}
	return ticket, nil
}

func notFoundTicket(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
}

func actorFor(principal domain.Principal, role domain.Role) events.Actor {
	return events.Actor{ID: principal.ID, Role: role}
}

func messagePayload(msg *domain.TicketMessage) events.TicketMessageAddedPayload {
	return events.TicketMessageAddedPayload{
		MessageID:   msg.ID,
		SenderRole:  msg.SenderRole,
		BodyPreview: stringPreview(msg.Body, eventPreviewLength),
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
