package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type MarkAllReadInput struct {
	Caller         chat.Caller
	ConversationID int64
}

// MarkAllReadUseCase flips every unread message addressed to the caller and returns how many.
type MarkAllReadUseCase struct {
	Repo   repository.ChatRepository
	Unread *UnreadCounter
}

func NewMarkAllReadUseCase(repo repository.ChatRepository, unread *UnreadCounter) *MarkAllReadUseCase {
	return &MarkAllReadUseCase{Repo: repo, Unread: unread}
}

// Execute marks the counterpart's messages read and drops the cached count
func (uc *MarkAllReadUseCase) Execute(ctx context.Context, in MarkAllReadInput) (int64, error) {
	conv, _, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		return 0, err
	}
	n, err := uc.Repo.MarkAllRead(ctx, conv.ID, in.Caller.UserID)
	if err != nil {
		return 0, persistenceErr(err)
	}
	uc.Unread.Invalidate(ctx, conv.ID, in.Caller.UserID)
	return n, nil
}
