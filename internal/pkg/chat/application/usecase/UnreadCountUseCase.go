package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type UnreadCountInput struct {
	Caller         chat.Caller
	ConversationID int64
}

// UnreadCountUseCase reports a party's unread count through the unread cache.
type UnreadCountUseCase struct {
	Repo   repository.ChatRepository
	Unread *UnreadCounter
}

func NewUnreadCountUseCase(repo repository.ChatRepository, unread *UnreadCounter) *UnreadCountUseCase {
	return &UnreadCountUseCase{Repo: repo, Unread: unread}
}

// Execute returns how many of the counterpart's messages the caller has not read
func (uc *UnreadCountUseCase) Execute(ctx context.Context, in UnreadCountInput) (int64, error) {
	conv, _, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		return 0, err
	}
	return uc.Unread.Count(ctx, conv.ID, in.Caller.UserID)
}
