// Package mailbox writes mirrored admin replies into the platform's vendor mailbox.
package mailbox

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spec-kit/support-desk/internal/domain"
)

// MongoMirror inserts into the mailbox collection the rest of the platform reads.
type MongoMirror struct {
	collection *mongo.Collection
}

// NewMongoMirror targets db.collection.
func NewMongoMirror(db *mongo.Database, collection string) *MongoMirror {
	return &MongoMirror{collection: db.Collection(collection)}
}

// Write stores msg as one mailbox document.
func (m *MongoMirror) Write(ctx context.Context, msg domain.MirroredMessage) error {
	if _, err := m.collection.InsertOne(ctx, toDocument(msg)); err != nil {
		return fmt.Errorf("insert mailbox message: %w", err)
	}
	return nil
}

// toDocument lays msg out the way the mailbox collection stores it: the admin is the
// "user" side of the conversation and the ticket owner the "vendor" side.
func toDocument(msg domain.MirroredMessage) bson.D {
	return bson.D{
		{Key: "userId", Value: objectIDOrString(msg.SenderID)},
		{Key: "vendorId", Value: objectIDOrString(msg.RecipientID)},
		{Key: "userName", Value: msg.SenderLabel},
		{Key: "userEmail", Value: msg.SenderEmail},
		{Key: "vendorEmail", Value: msg.RecipientEmail},
		{Key: "subject", Value: msg.Subject},
		{Key: "message", Value: msg.Body},
		{Key: "senderType", Value: string(msg.SenderType)},
		{Key: "status", Value: msg.Status},
		{Key: "mirrorId", Value: msg.ID},
		{Key: "createdAt", Value: msg.CreatedAt},
		{Key: "updatedAt", Value: msg.CreatedAt},
	}
}

// objectIDOrString keeps platform account ids as ObjectIDs so mailbox lookups by
// account match.
func objectIDOrString(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}
