package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new text message
type SendMessageInput struct {
	Caller         chat.Caller
	ConversationID int64
	Text           string
}

// SendMessageUseCase persists a text message and relays it to the room.
// Persist and broadcast for one conversation happen under its sequencer stripe, so subscribers
// see messages in id order. Cache upkeep runs after the stripe is released, and the recipient
// notification is dispatched in the background with its own deadline.
type SendMessageUseCase struct {
	Repo             repository.ChatRepository
	Broadcaster      port.Broadcaster
	Notifier         port.Notifier
	Unread           *UnreadCounter
	Sequencer        *Sequencer
	Logger           *zap.Logger
	MaxMessageLength int

	pending sync.WaitGroup
}

const notifyTimeout = 5 * time.Second

// NewSendMessageUseCase wires the send path. A nil notifier skips notifications.
func NewSendMessageUseCase(repo repository.ChatRepository, broadcaster port.Broadcaster, notifier port.Notifier, unread *UnreadCounter, seq *Sequencer, maxLen int, logger *zap.Logger) *SendMessageUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendMessageUseCase{
		Repo:             repo,
		Broadcaster:      broadcaster,
		Notifier:         notifier,
		Unread:           unread,
		Sequencer:        seq,
		Logger:           logger,
		MaxMessageLength: maxLen,
	}
}

// Execute persists a new text message from the caller, relays it to the conversation room and
// notifies the counterpart. The caller must be a party of an open conversation.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	if err := in.Caller.Validate(); err != nil {
		return nil, err
	}

	unlock := uc.Sequencer.Lock(in.ConversationID)
	msg, recipientID, err := uc.persistAndRelay(ctx, in)
	unlock()
	if err != nil {
		return nil, err
	}

	uc.Unread.Invalidate(ctx, msg.ConversationID, recipientID)
	uc.notify(msg.ConversationID, recipientID)
	return msg, nil
}

// Wait blocks until every notification dispatched so far has been handed to the notifier.
func (uc *SendMessageUseCase) Wait() {
	uc.pending.Wait()
}

func (uc *SendMessageUseCase) notify(conversationID, recipientID int64) {
	if uc.Notifier == nil {
		return
	}
	uc.pending.Add(1)
	go func() {
		defer uc.pending.Done()
		// the request may be gone by now
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := uc.Notifier.Notify(ctx, recipientID, port.NotificationKindChat); err != nil {
			uc.Logger.Warn("notify failed",
				zap.Int64("conversationId", conversationID),
				zap.Int64("recipientId", recipientID),
				zap.Error(err))
		}
	}()
}

func (uc *SendMessageUseCase) persistAndRelay(ctx context.Context, in SendMessageInput) (*chat.Message, int64, error) {
	conv, err := loadConversation(ctx, uc.Repo, in.ConversationID)
	if err != nil {
		return nil, 0, err
	}
	draft, side, err := conv.PostMessage(in.Caller.UserID, in.Text, uc.MaxMessageLength)
	if err != nil {
		return nil, 0, err
	}

	saved, err := uc.Repo.SaveMessage(ctx, *draft)
	if err != nil {
		return nil, 0, persistenceErr(err)
	}

	delivered := broadcastEvent(uc.Broadcaster, uc.Logger, saved)
	uc.Logger.Debug("message relayed",
		zap.Int64("conversationId", saved.ConversationID),
		zap.Int64("messageId", saved.ID),
		zap.Int("delivered", delivered))
	return &saved, conv.PartyID(side.Other()), nil
}
