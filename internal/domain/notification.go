package domain

import "time"

// NotificationKind selects how a notification is presented.
type NotificationKind string

const (
	NotificationKindInfo    NotificationKind = "info"
	NotificationKindSuccess NotificationKind = "success"
)

// Notification is persisted for later retrieval by its recipient.
type Notification struct {
	ID              string
	RecipientID     string
	Title           string
	Body            string
	Kind            NotificationKind
	RelatedTicketID string
	CreatedAt       time.Time
}

// MirrorSenderType identifies which side of the mailbox wrote a message.
type MirrorSenderType string

const (
	MirrorSenderAdmin  MirrorSenderType = "Admin"
	MirrorSenderVendor MirrorSenderType = "Vendor"
)

// MirrorStatusReplied marks a mailbox message written in reply to a vendor.
const MirrorStatusReplied = "Replied"

// MirroredMessage is a copy of an admin reply written into the direct-messaging mailbox.
type MirroredMessage struct {
	ID             string
	SenderID       string
	RecipientID    string
	SenderLabel    string
	SenderEmail    string
	RecipientEmail string
	Subject        string
	Body           string
	SenderType     MirrorSenderType
	Status         string
	CreatedAt      time.Time
}

// DeliveryResult reports the outcome of an outbound email.
type DeliveryResult struct {
	Success bool
	Message string
}
