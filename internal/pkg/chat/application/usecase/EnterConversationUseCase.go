package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type EnterConversationInput struct {
	Caller         chat.Caller
	ConversationID int64
}

type EnterConversationOutput struct {
	Conversation chat.Conversation
	// Changed is false when the caller's side was already in; nothing else happened then.
	Changed    bool
	MarkedRead int64
}

// EnterConversationUseCase marks the caller's side present, acknowledges everything the other
// side sent and announces the entry to the room.
type EnterConversationUseCase struct {
	Repo        repository.ChatRepository
	Broadcaster port.Broadcaster
	Unread      *UnreadCounter
	Sequencer   *Sequencer
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewEnterConversationUseCase falls back to a no-op logger when logger is nil.
func NewEnterConversationUseCase(repo repository.ChatRepository, broadcaster port.Broadcaster, unread *UnreadCounter, seq *Sequencer, logger *zap.Logger) *EnterConversationUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnterConversationUseCase{Repo: repo, Broadcaster: broadcaster, Unread: unread, Sequencer: seq, Logger: logger, Now: time.Now}
}

// Execute flips the caller present, marks the counterpart's messages read and broadcasts ENTER
func (uc *EnterConversationUseCase) Execute(ctx context.Context, in EnterConversationInput) (*EnterConversationOutput, error) {
	unlock := uc.Sequencer.Lock(in.ConversationID)
	out, err := uc.enter(ctx, in)
	unlock()
	if err != nil || !out.Changed {
		return out, err
	}

	uc.Unread.Invalidate(ctx, out.Conversation.ID, in.Caller.UserID)
	return out, nil
}

func (uc *EnterConversationUseCase) enter(ctx context.Context, in EnterConversationInput) (*EnterConversationOutput, error) {
	conv, side, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		return nil, err
	}

	changed, err := uc.Repo.SetPresence(ctx, conv.ID, side, true)
	if err != nil {
		return nil, persistenceErr(err)
	}
	conv.SetPresent(side, true)
	if !changed {
		return &EnterConversationOutput{Conversation: conv}, nil
	}

	marked, err := uc.Repo.MarkAllRead(ctx, conv.ID, in.Caller.UserID)
	if err != nil {
		// undo so a retried enter runs the read pass again
		if _, rerr := uc.Repo.SetPresence(ctx, conv.ID, side, false); rerr != nil {
			uc.Logger.Error("presence rollback failed", zap.Int64("conversationId", conv.ID), zap.Error(rerr))
		}
		return nil, persistenceErr(err)
	}

	broadcastEvent(uc.Broadcaster, uc.Logger, chat.NewPresenceMessage(conv.ID, in.Caller.UserID, chat.KindEnter, uc.Now()))
	return &EnterConversationOutput{Conversation: conv, Changed: true, MarkedRead: marked}, nil
}

func broadcastEvent(b port.Broadcaster, logger *zap.Logger, m chat.Message) int {
	if b == nil {
		return 0
	}
	payload, err := m.Payload()
	if err != nil {
		logger.Error("encode broadcast payload", zap.Int64("conversationId", m.ConversationID), zap.Error(err))
		return 0
	}
	return b.Broadcast(chat.Topic(m.ConversationID), payload)
}
