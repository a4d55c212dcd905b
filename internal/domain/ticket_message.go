package domain

import "time"

// TicketMessage captures one entry of a ticket thread. Messages are never edited.
type TicketMessage struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderRole Role
	Body       string
	CreatedAt  time.Time
}
