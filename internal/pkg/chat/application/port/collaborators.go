package port

import (
	"context"
	"time"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
)

// NotificationKindChat tags notifications raised by the chat relay.
const NotificationKindChat = "CHAT"

// Notifier dispatches a notification to a user. Callers treat it as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, kind string) error
}

// Audit events
const (
	AuditEventCreate = "create"
	AuditEventClose  = "close"
	AuditEventFlag   = "flag"
)

// AuditEntry captures a lifecycle change of a conversation.
type AuditEntry struct {
	ActorID int64
	Event   string
	Before  *chat.Conversation // nil for create
	After   chat.Conversation
	At      time.Time
}

// AuditLog appends audit entries.
type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
}

// Broadcaster fans a payload out to every live subscriber of a topic.
// It must not block on slow subscribers.
type Broadcaster interface {
	Broadcast(topic string, payload []byte) int
}
