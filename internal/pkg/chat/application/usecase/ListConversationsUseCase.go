package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type ListConversationsInput struct {
	Caller chat.Caller
	Page   int
}

// ConversationSummary is one row of the caller's conversation list.
type ConversationSummary struct {
	Conversation  chat.Conversation
	CounterpartID int64
	LastMessage   *chat.Message // nil when nothing was sent yet
	Unread        int64
}

// ListConversationsUseCase pages through the caller's conversations, most recently active first.
// Last messages and unread counts are fetched for the whole page at once.
type ListConversationsUseCase struct {
	Repo     repository.ChatRepository
	PageSize int
}

func NewListConversationsUseCase(repo repository.ChatRepository, pageSize int) *ListConversationsUseCase {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &ListConversationsUseCase{Repo: repo, PageSize: pageSize}
}

// Execute returns one page of summaries with counterpart, last message and unread count
func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]ConversationSummary, error) {
	if err := in.Caller.Validate(); err != nil {
		return nil, err
	}
	side := in.Caller.Role.Side()
	convs, err := uc.Repo.ListConversationsByParty(ctx, in.Caller.UserID, side, uc.PageSize, pageOffset(in.Page, uc.PageSize))
	if err != nil {
		return nil, persistenceErr(err)
	}
	summaries := make([]ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return summaries, nil
	}

	ids := make([]int64, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	lastMessages, err := uc.Repo.LastMessages(ctx, ids)
	if err != nil {
		return nil, persistenceErr(err)
	}
	unread, err := uc.Repo.CountUnreadBatch(ctx, in.Caller.UserID, ids)
	if err != nil {
		return nil, persistenceErr(err)
	}

	for _, c := range convs {
		s := ConversationSummary{
			Conversation:  c,
			CounterpartID: c.PartyID(side.Other()),
			Unread:        unread[c.ID],
		}
		if m, ok := lastMessages[c.ID]; ok {
			m := m
			s.LastMessage = &m
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
