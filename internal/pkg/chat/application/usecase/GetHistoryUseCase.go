package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

const DefaultPageSize = 20

// GetHistoryInput asks for one page of a conversation's messages. Page is 1-based; values
// below 1 read the first page.
type GetHistoryInput struct {
	Caller         chat.Caller
	ConversationID int64
	Page           int
}

// GetHistoryUseCase returns messages newest first, PageSize per page.
type GetHistoryUseCase struct {
	Repo     repository.ChatRepository
	PageSize int
}

// NewGetHistoryUseCase uses the default page size when pageSize is not positive.
func NewGetHistoryUseCase(repo repository.ChatRepository, pageSize int) *GetHistoryUseCase {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &GetHistoryUseCase{Repo: repo, PageSize: pageSize}
}

// Execute returns one page of the conversation's messages, newest first
func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]chat.Message, error) {
	conv, _, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.Repo.GetMessagesByConversation(ctx, conv.ID, uc.PageSize, pageOffset(in.Page, uc.PageSize))
	if err != nil {
		return nil, persistenceErr(err)
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}

func pageOffset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}
