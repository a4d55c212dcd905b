package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/worker"
)

// AlertService reacts to ticket events: it emails the admin about new tickets and
// keeps an activity log.
type AlertService struct {
	dispatcher events.Dispatcher
	email      EmailSink
	users      repository.UserRepository
	runner     *worker.TaskRunner
	logger     *zap.Logger
}

// NewAlertService creates the service.
func NewAlertService(dispatcher events.Dispatcher, email EmailSink, users repository.UserRepository, runner *worker.TaskRunner, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		dispatcher: dispatcher,
		email:      email,
		users:      users,
		runner:     runner,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AlertService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	for _, eventType := range []events.EventType{
		events.EventTicketFollowUp,
		events.EventTicketStatusChanged,
		events.EventTicketReplied,
		events.EventTicketMessageAdded,
		events.EventTicketDeleted,
		events.EventThreadCleared,
	} {
		a.dispatcher.Subscribe(eventType, a.logActivity)
	}
}

// handleTicketCreated schedules the admin alert and returns immediately. Delivery
// failures are only logged by the runner.
func (a *AlertService) handleTicketCreated(ctx context.Context, event events.Event) error {
	a.logActivity(ctx, event)

	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if a.email == nil || a.runner == nil {
		return nil
	}
	ticket := payload.Ticket
	a.runner.Go(ctx, "admin-alert", func(taskCtx context.Context) error {
		owner, err := a.users.GetByID(taskCtx, ticket.OwnerID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("resolve ticket owner: %w", err)
		}
		if owner == nil {
			owner = &domain.User{ID: ticket.OwnerID}
		}
		return a.email.SendAdminAlert(taskCtx, &ticket, owner)
	})
	return nil
}

func (a *AlertService) logActivity(_ context.Context, event events.Event) error {
	a.logger.Info("ticket activity",
		zap.String("event", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Any("payload", event.Payload))
	return nil
}
