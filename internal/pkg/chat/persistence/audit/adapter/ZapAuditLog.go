package adapter

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
)

// ZapAuditLog writes audit entries as structured log lines.
type ZapAuditLog struct {
	logger *zap.Logger
}

func NewZapAuditLog(logger *zap.Logger) *ZapAuditLog {
	return &ZapAuditLog{logger: logger.Named("audit")}
}

var _ port.AuditLog = (*ZapAuditLog)(nil)

func (a *ZapAuditLog) Record(ctx context.Context, e port.AuditEntry) error {
	fields := []zap.Field{
		zap.String("event", e.Event),
		zap.Int64("conversationId", e.After.ID),
		zap.Int64("actorId", e.ActorID),
		zap.Time("at", e.At),
		zap.Object("after", snapshot(e.After)),
	}
	if e.Before != nil {
		fields = append(fields, zap.Object("before", snapshot(*e.Before)))
	}
	a.logger.Info("conversation audit", fields...)
	return nil
}

type snapshot chat.Conversation

func (s snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	c := chat.Conversation(s)
	enc.AddInt64("mentorId", c.MentorID)
	enc.AddInt64("menteeId", c.MenteeID)
	enc.AddString("lifecycle", string(c.Lifecycle()))
	enc.AddBool("mentorIn", c.MentorIn)
	enc.AddBool("menteeIn", c.MenteeIn)
	return nil
}
