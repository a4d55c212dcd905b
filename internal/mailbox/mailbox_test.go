package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/support-desk/internal/domain"
)

func sampleMessage() domain.MirroredMessage {
	return domain.MirroredMessage{
		ID:             "m1",
		SenderID:       "admin-1",
		RecipientID:    "65f1c2a4b3d2e1f0a9b8c7d6",
		SenderLabel:    "Platform Admin",
		SenderEmail:    "ops@example.com",
		RecipientEmail: "u1@example.com",
		Subject:        "Payout question",
		Body:           "Payout runs Friday",
		SenderType:     domain.MirrorSenderAdmin,
		Status:         domain.MirrorStatusReplied,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestToDocument(t *testing.T) {
	doc := toDocument(sampleMessage())

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded bson.M
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	assert.Equal(t, "admin-1", decoded["userId"])
	oid, ok := decoded["vendorId"].(primitive.ObjectID)
	require.True(t, ok)
	assert.Equal(t, "65f1c2a4b3d2e1f0a9b8c7d6", oid.Hex())
	assert.Equal(t, "Admin", decoded["senderType"])
	assert.Equal(t, "Replied", decoded["status"])
	assert.Equal(t, "Payout runs Friday", decoded["message"])
	assert.Equal(t, "u1@example.com", decoded["vendorEmail"])
}

func TestStreamValues(t *testing.T) {
	values := streamValues(sampleMessage())
	assert.Equal(t, "Admin", values["sender_type"])
	assert.Equal(t, "Replied", values["status"])
	assert.Equal(t, "2026-03-01T12:00:00Z", values["created_at"])
	assert.Equal(t, "u1@example.com", values["recipient_email"])
}

func TestLogMirror(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLogMirror(zap.New(core)).Write(context.Background(), sampleMessage()))
	assert.Equal(t, 1, logs.Len())
}
