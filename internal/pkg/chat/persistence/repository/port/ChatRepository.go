package repository

import (
	"context"
	"time"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
)

// ChatRepository defines persistence operations for the chat domain.
//
// Adapters translate their driver errors into the domain taxonomy:
// missing rows become chat.ErrConversationNotFound and a violated pair-key
// uniqueness constraint becomes chat.ErrConflict.
type ChatRepository interface {
	// CreateConversation inserts c and returns it with its assigned ID.
	CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error)
	FindConversationByID(ctx context.Context, id int64) (chat.Conversation, error)
	// FindConversationByPair ignores argument order.
	FindConversationByPair(ctx context.Context, a, b int64) (chat.Conversation, error)
	ListConversationsByParty(ctx context.Context, userID int64, side chat.Side, limit int, offset int) ([]chat.Conversation, error)

	// SetPresence is a single-row compare-and-set on the side's flag; changed is false when the
	// flag already held the requested value.
	SetPresence(ctx context.Context, conversationID int64, side chat.Side, present bool) (changed bool, err error)
	CloseConversation(ctx context.Context, conversationID int64, at time.Time) (changed bool, err error)
	FlagConversation(ctx context.Context, conversationID int64, at time.Time) (changed bool, err error)

	// SaveMessage appends m and advances the conversation's last activity in one step.
	SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	// GetMessagesByConversation returns newest first.
	GetMessagesByConversation(ctx context.Context, conversationID int64, limit int, offset int) ([]chat.Message, error)
	LastMessages(ctx context.Context, conversationIDs []int64) (map[int64]chat.Message, error)

	// MarkAllRead flips every unread TEXT message not sent by readerID in one bulk update.
	MarkAllRead(ctx context.Context, conversationID int64, readerID int64) (int64, error)
	CountUnread(ctx context.Context, conversationID int64, readerID int64) (int64, error)
	// CountUnreadBatch omits conversations with no unread messages and conversations readerID
	// is not a party of.
	CountUnreadBatch(ctx context.Context, readerID int64, conversationIDs []int64) (map[int64]int64, error)
}
