package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

const defaultMirrorSubject = "Admin Support Message"

var errNoMirrorRecipient = errors.New("ticket owner has no email")

// MailboxMirror writes into the platform's direct-messaging mailbox.
type MailboxMirror interface {
	Write(ctx context.Context, msg domain.MirroredMessage) error
}

// MailboxBridgeConfig selects which tickets are mirrored and how.
type MailboxBridgeConfig struct {
	Category    string
	SenderLabel string
	Timeout     time.Duration
}

// MailboxBridge copies admin replies on the designated category into the vendor
// mailbox. It never fails the caller.
type MailboxBridge struct {
	mirror MailboxMirror
	users  repository.UserRepository
	cfg    MailboxBridgeConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewMailboxBridge wires a bridge. A nil mirror disables mirroring.
func NewMailboxBridge(mirror MailboxMirror, users repository.UserRepository, cfg MailboxBridgeConfig, logger *zap.Logger) *MailboxBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailboxBridge{
		mirror: mirror,
		users:  users,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Applies reports whether replies on ticket belong in the mailbox.
func (b *MailboxBridge) Applies(ticket *domain.Ticket) bool {
	return b != nil && b.mirror != nil && ticket != nil && b.cfg.Category != "" && ticket.Category == b.cfg.Category
}

// Mirror writes body as an admin message to the ticket owner's mailbox. The caller
// must already have committed the reply and must only pass admin senders.
func (b *MailboxBridge) Mirror(ctx context.Context, sender domain.Principal, ticket *domain.Ticket, body string) bool {
	if !b.Applies(ticket) {
		return false
	}
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	if err := b.write(ctx, sender, ticket, body); err != nil {
		b.logger.Warn("mailbox mirror failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("owner_id", ticket.OwnerID),
			zap.Error(err))
		return false
	}
	b.logger.Debug("mailbox mirror written", zap.String("ticket_id", ticket.ID))
	return true
}

func (b *MailboxBridge) write(ctx context.Context, sender domain.Principal, ticket *domain.Ticket, body string) error {
	owner, err := b.users.GetByID(ctx, ticket.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNoMirrorRecipient
	}
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}
	if !owner.HasEmail() {
		return errNoMirrorRecipient
	}

	subject := strings.TrimSpace(ticket.Description)
	if subject == "" {
		subject = defaultMirrorSubject
	}
	msg := domain.MirroredMessage{
		ID:             uuid.NewString(),
		SenderID:       sender.ID,
		RecipientID:    owner.ID,
		SenderLabel:    b.cfg.SenderLabel,
		SenderEmail:    sender.Email,
		RecipientEmail: owner.Email,
		Subject:        subject,
		Body:           body,
		SenderType:     domain.MirrorSenderAdmin,
		Status:         domain.MirrorStatusReplied,
		CreatedAt:      b.now(),
	}
	return b.mirror.Write(ctx, msg)
}
