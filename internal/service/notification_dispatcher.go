package service

import (
	"fmt"

	"github.com/spec-kit/support-desk/internal/domain"
)

const (
	notificationTitle  = "New Support Reply"
	replyPreviewLength = 50
	eventPreviewLength = 120
)

// ticketDiff records which owner-visible fields a resolve call changes.
type ticketDiff struct {
	statusChanged bool
	noteChanged   bool
}

func diffTicket(old, updated *domain.Ticket) ticketDiff {
	return ticketDiff{
		statusChanged: old.Status != updated.Status,
		noteChanged:   old.ResolutionNote != updated.ResolutionNote,
	}
}

func (d ticketDiff) changed() bool {
	return d.statusChanged || d.noteChanged
}

// BuildStatusNotification returns the notification the owner receives for a status or
// resolution note change, or nil when the change is not worth telling them about.
func BuildStatusNotification(old, updated *domain.Ticket) *domain.Notification {
	diff := diffTicket(old, updated)
	note := updated.ResolutionNote

	var body string
	switch {
	case diff.statusChanged && diff.noteChanged && note != "":
		body = fmt.Sprintf("Your report (ID: %s) status has been updated to: %s. Admin response: \"%s\"",
			updated.ShortID(), updated.Status, note)
	case diff.statusChanged:
		body = fmt.Sprintf("Your report (ID: %s) status has been updated to: %s", updated.ShortID(), updated.Status)
	case diff.noteChanged && note != "":
		body = fmt.Sprintf("Admin has responded to your report (ID: %s): \"%s\"", updated.ShortID(), note)
	default:
		return nil
	}

	kind := domain.NotificationKindInfo
	if updated.Status == domain.TicketStatusResolved {
		kind = domain.NotificationKindSuccess
	}
	return &domain.Notification{
		RecipientID:     updated.OwnerID,
		Title:           notificationTitle,
		Body:            body,
		Kind:            kind,
		RelatedTicketID: updated.ID,
	}
}

// BuildReplyNotification tells the owner an admin answered by email.
func BuildReplyNotification(ticket *domain.Ticket, body string) *domain.Notification {
	return &domain.Notification{
		RecipientID:     ticket.OwnerID,
		Title:           notificationTitle,
		Body:            fmt.Sprintf("Admin replied to your support ticket: \"%s\"...", truncateRunes(body, replyPreviewLength)),
		Kind:            domain.NotificationKindInfo,
		RelatedTicketID: ticket.ID,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
