package mailbox

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// LogMirror records mirrored messages in the log only.
type LogMirror struct {
	logger *zap.Logger
}

// NewLogMirror builds a mirror for deployments without a mailbox backend.
func NewLogMirror(logger *zap.Logger) *LogMirror {
	return &LogMirror{logger: logger}
}

// Write logs msg.
func (l *LogMirror) Write(_ context.Context, msg domain.MirroredMessage) error {
	l.logger.Info("mailbox mirror (no backend)",
		zap.String("recipient_id", msg.RecipientID),
		zap.String("recipient_email", msg.RecipientEmail),
		zap.String("subject", msg.Subject))
	return nil
}
