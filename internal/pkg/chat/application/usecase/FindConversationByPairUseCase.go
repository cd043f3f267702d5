package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type FindConversationByPairInput struct {
	Caller        chat.Caller
	CounterpartID int64
}

// FindConversationByPairUseCase looks up the caller's conversation with a counterpart without
// creating it.
type FindConversationByPairUseCase struct {
	Repo repository.ChatRepository
}

func NewFindConversationByPairUseCase(repo repository.ChatRepository) *FindConversationByPairUseCase {
	return &FindConversationByPairUseCase{Repo: repo}
}

// Execute returns the pair's conversation or ErrConversationNotFound
func (uc *FindConversationByPairUseCase) Execute(ctx context.Context, in FindConversationByPairInput) (*chat.Conversation, error) {
	if err := in.Caller.Validate(); err != nil {
		return nil, err
	}
	if in.CounterpartID == in.Caller.UserID {
		return nil, chat.ErrSelfConversation
	}
	conv, err := uc.Repo.FindConversationByPair(ctx, in.Caller.UserID, in.CounterpartID)
	if err != nil {
		return nil, persistenceErr(err)
	}
	return &conv, nil
}
