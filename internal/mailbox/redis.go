package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-desk/internal/domain"
)

const streamMaxLen = 100000

// RedisStreamMirror appends mailbox messages to a Redis stream consumed by the
// messaging service.
type RedisStreamMirror struct {
	client redis.Cmdable
	stream string
}

// NewRedisStreamMirror writes to stream.
func NewRedisStreamMirror(client redis.Cmdable, stream string) *RedisStreamMirror {
	return &RedisStreamMirror{client: client, stream: stream}
}

// Write appends msg as one stream entry.
func (r *RedisStreamMirror) Write(ctx context.Context, msg domain.MirroredMessage) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: streamValues(msg),
	}).Err()
	if err != nil {
		return fmt.Errorf("append to %s: %w", r.stream, err)
	}
	return nil
}

func streamValues(msg domain.MirroredMessage) map[string]any {
	return map[string]any{
		"id":              msg.ID,
		"sender_id":       msg.SenderID,
		"recipient_id":    msg.RecipientID,
		"sender_label":    msg.SenderLabel,
		"sender_email":    msg.SenderEmail,
		"recipient_email": msg.RecipientEmail,
		"subject":         msg.Subject,
		"body":            msg.Body,
		"sender_type":     string(msg.SenderType),
		"status":          msg.Status,
		"created_at":      msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
