package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

// loadAsParty loads a conversation and resolves the caller's side in it.
func loadAsParty(ctx context.Context, repo repository.ChatRepository, caller chat.Caller, conversationID int64) (chat.Conversation, chat.Side, error) {
	if err := caller.Validate(); err != nil {
		return chat.Conversation{}, 0, err
	}
	conv, err := loadConversation(ctx, repo, conversationID)
	if err != nil {
		return chat.Conversation{}, 0, err
	}
	side, err := conv.SideOf(caller.UserID)
	if err != nil {
		return chat.Conversation{}, 0, err
	}
	return conv, side, nil
}

func loadConversation(ctx context.Context, repo repository.ChatRepository, conversationID int64) (chat.Conversation, error) {
	if conversationID <= 0 {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	conv, err := repo.FindConversationByID(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, persistenceErr(err)
	}
	return conv, nil
}
