package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

// ActiveStatuses are the non-terminal states. At most one ticket per owner and
// category may be in one of them.
var ActiveStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress}

// IsActive reports whether the status is non-terminal.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// ParseTicketStatus normalizes user supplied status strings.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// DefaultPriority is applied when a submission carries none.
const DefaultPriority = "medium"

// Ticket is a support case scoped to one owner and one category.
type Ticket struct {
	ID             string
	OwnerID        string
	Category       string
	Priority       string
	Description    string
	Status         TicketStatus
	ResolutionNote string
	TargetID       *string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// ShortID returns the first eight characters of the ticket id.
func (t *Ticket) ShortID() string {
	if len(t.ID) <= 8 {
		return t.ID
	}
	return t.ID[:8]
}

// TicketOverview pairs a ticket with a preview of its latest thread message.
type TicketOverview struct {
	Ticket
	LatestMessage string
}
