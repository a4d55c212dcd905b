package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Category    string  `json:"category" validate:"required,max=100"`
	Priority    string  `json:"priority" validate:"omitempty,max=32"`
	Description string  `json:"description" validate:"required,max=10000"`
	TargetID    *string `json:"target_id" validate:"omitempty,max=100"`
}

// ReplyRequest carries the email body an admin sends to the ticket owner.
type ReplyRequest struct {
	Message string `json:"message" validate:"required,max=10000"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Status         string `json:"status" validate:"required,oneof=open in-progress resolved"`
	ResolutionNote string `json:"resolution_note" validate:"max=10000"`
}

// AppendMessageRequest payload.
type AppendMessageRequest struct {
	Message string `json:"message" validate:"required,max=10000"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID             string              `json:"id"`
	OwnerID        string              `json:"owner_id"`
	Category       string              `json:"category"`
	Priority       string              `json:"priority"`
	Description    string              `json:"description"`
	Status         domain.TicketStatus `json:"status"`
	ResolutionNote string              `json:"resolution_note,omitempty"`
	TargetID       *string             `json:"target_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	LastActivityAt time.Time           `json:"last_activity_at"`
}

// TicketOverviewResponse is a ticket in the admin list.
type TicketOverviewResponse struct {
	TicketResponse
	LatestMessage string `json:"latest_message"`
}

// TicketMessageResponse represents one thread message.
type TicketMessageResponse struct {
	ID         string      `json:"id"`
	TicketID   string      `json:"ticket_id"`
	SenderID   string      `json:"sender_id"`
	SenderRole domain.Role `json:"sender_role"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NotificationResponse represents a stored notification.
type NotificationResponse struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Body            string                  `json:"body"`
	Kind            domain.NotificationKind `json:"kind"`
	RelatedTicketID string                  `json:"related_ticket_id"`
	CreatedAt       time.Time               `json:"created_at"`
}

// ReplyResponse reports the outcome of an admin reply.
type ReplyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeleteTicketResponse confirms a deletion.
type DeleteTicketResponse struct {
	Deleted bool `json:"deleted"`
}

// ClearMessagesResponse reports how many messages were removed.
type ClearMessagesResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		OwnerID:        t.OwnerID,
		Category:       t.Category,
		Priority:       t.Priority,
		Description:    t.Description,
		Status:         t.Status,
		ResolutionNote: t.ResolutionNote,
		TargetID:       t.TargetID,
		CreatedAt:      t.CreatedAt,
		LastActivityAt: t.LastActivityAt,
	}
}

// NewTicketListResponse maps a slice of tickets.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewTicketOverviewListResponse maps the admin list.
func NewTicketOverviewListResponse(overviews []domain.TicketOverview) []TicketOverviewResponse {
	items := make([]TicketOverviewResponse, 0, len(overviews))
	for i := range overviews {
		items = append(items, TicketOverviewResponse{
			TicketResponse: NewTicketResponse(&overviews[i].Ticket),
			LatestMessage:  overviews[i].LatestMessage,
		})
	}
	return items
}

// NewTicketMessageResponse maps a thread message.
func NewTicketMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

// NewTicketMessageListResponse maps a thread.
func NewTicketMessageListResponse(msgs []domain.TicketMessage) []TicketMessageResponse {
	items := make([]TicketMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, NewTicketMessageResponse(&msgs[i]))
	}
	return items
}

// NewNotificationListResponse maps notifications.
func NewNotificationListResponse(notifications []domain.Notification) []NotificationResponse {
	items := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, NotificationResponse{
			ID:              n.ID,
			Title:           n.Title,
			Body:            n.Body,
			Kind:            n.Kind,
			RelatedTicketID: n.RelatedTicketID,
			CreatedAt:       n.CreatedAt,
		})
	}
	return items
}
