// Package email delivers support desk mail over SMTP with gomail.
package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

// Sender is the part of *gomail.Dialer the sink uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSink sends admin alerts and vendor replies.
type SMTPSink struct {
	sender      Sender
	from        string
	fromName    string
	adminEmails []string
	logger      *zap.Logger
}

// NewSMTPSink dials the configured SMTP server for every message.
func NewSMTPSink(cfg config.SMTPConfig, adminEmails []string, logger *zap.Logger) *SMTPSink {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newSMTPSink(dialer, cfg.From, cfg.FromName, adminEmails, logger)
}

func newSMTPSink(sender Sender, from, fromName string, adminEmails []string, logger *zap.Logger) *SMTPSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSink{
		sender:      sender,
		from:        from,
		fromName:    fromName,
		adminEmails: adminEmails,
		logger:      logger,
	}
}

// SendAdminAlert tells the admin team a new ticket was filed.
func (s *SMTPSink) SendAdminAlert(ctx context.Context, ticket *domain.Ticket, owner *domain.User) error {
	if len(s.adminEmails) == 0 {
		return errors.New("no admin recipients configured")
	}
	msg := s.newMessage(s.adminEmails...)
	msg.SetHeader("Subject", adminAlertSubject(ticket))
	if owner.HasEmail() {
		msg.SetHeader("Reply-To", owner.Email)
	}
	text, htmlBody := adminAlertBody(ticket, owner)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", htmlBody)

	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("send admin alert for ticket %s: %w", ticket.ID, err)
	}
	s.logger.Info("admin alert sent", zap.String("ticket_id", ticket.ID))
	return nil
}

// SendVendorReply emails an admin reply to the ticket owner.
func (s *SMTPSink) SendVendorReply(ctx context.Context, toEmail, toName, body, ticketID string) domain.DeliveryResult {
	msg := s.newMessage()
	msg.SetAddressHeader("To", toEmail, toName)
	msg.SetHeader("Subject", vendorReplySubject(ticketID))
	msg.SetBody("text/plain", vendorReplyBody(toName, body))

	if err := s.send(ctx, msg); err != nil {
		s.logger.Warn("vendor reply failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return domain.DeliveryResult{Success: false, Message: "failed to send email to vendor"}
	}
	return domain.DeliveryResult{Success: true, Message: "email sent"}
}

func (s *SMTPSink) newMessage(to ...string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, s.fromName)
	if len(to) > 0 {
		msg.SetHeader("To", to...)
	}
	return msg
}

// send runs the blocking SMTP exchange but returns as soon as ctx is done.
func (s *SMTPSink) send(ctx context.Context, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- s.sender.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSink stands in for SMTP when no server is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a sink that only logs.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// SendAdminAlert logs the alert.
func (l *LogSink) SendAdminAlert(_ context.Context, ticket *domain.Ticket, _ *domain.User) error {
	l.logger.Info("admin alert (smtp disabled)",
		zap.String("ticket_id", ticket.ID),
		zap.String("subject", adminAlertSubject(ticket)))
	return nil
}

// SendVendorReply logs the reply and reports success.
func (l *LogSink) SendVendorReply(_ context.Context, toEmail, _, _, ticketID string) domain.DeliveryResult {
	l.logger.Info("vendor reply (smtp disabled)",
		zap.String("ticket_id", ticketID),
		zap.String("to", toEmail),
		zap.String("subject", vendorReplySubject(ticketID)))
	return domain.DeliveryResult{Success: true, Message: "email logged"}
}

func adminAlertSubject(ticket *domain.Ticket) string {
	return fmt.Sprintf("[Support] New %s ticket (%s priority)", ticket.Category, ticket.Priority)
}

func vendorReplySubject(ticketID string) string {
	short := ticketID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Re: your support ticket %s", short)
}

func adminAlertBody(ticket *domain.Ticket, owner *domain.User) (string, string) {
	from := ticket.OwnerID
	if owner != nil && owner.Name != "" {
		from = owner.Name
	}
	if owner.HasEmail() {
		from = fmt.Sprintf("%s <%s>", from, owner.Email)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "A new support ticket was submitted.\n\n")
	fmt.Fprintf(&text, "Ticket: %s\nFrom: %s\nCategory: %s\nPriority: %s\n\n%s\n",
		ticket.ID, from, ticket.Category, ticket.Priority, ticket.Description)

	htmlBody := fmt.Sprintf(
		"<h2>New support ticket</h2><p><strong>Ticket:</strong> %s<br><strong>From:</strong> %s<br>"+
			"<strong>Category:</strong> %s<br><strong>Priority:</strong> %s</p><p>%s</p>",
		html.EscapeString(ticket.ID),
		html.EscapeString(from),
		html.EscapeString(ticket.Category),
		html.EscapeString(ticket.Priority),
		strings.ReplaceAll(html.EscapeString(ticket.Description), "\n", "<br>"),
	)
	return text.String(), htmlBody
}

func vendorReplyBody(name, body string) string {
	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	return fmt.Sprintf("%s\n\n%s\n\nYou can follow up by replying in your support inbox.\n", greeting, body)
}
