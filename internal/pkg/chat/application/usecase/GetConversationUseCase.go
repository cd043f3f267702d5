package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type GetConversationInput struct {
	Caller         chat.Caller
	ConversationID int64
}

// GetConversationUseCase returns a conversation to one of its parties.
type GetConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewGetConversationUseCase(repo repository.ChatRepository) *GetConversationUseCase {
	return &GetConversationUseCase{Repo: repo}
}

// Execute loads the conversation and rejects callers that are not a party
func (uc *GetConversationUseCase) Execute(ctx context.Context, in GetConversationInput) (*chat.Conversation, error) {
	conv, _, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
