package usecase

import (
	"context"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type ListUnreadCountsInput struct {
	Caller          chat.Caller
	ConversationIDs []int64
}

// ListUnreadCountsUseCase returns the caller's unread count for each requested conversation with a
// single batched query. Every requested id is present in the result; unknown ids and conversations
// the caller is not a party of report 0.
type ListUnreadCountsUseCase struct {
	Repo repository.ChatRepository
}

func NewListUnreadCountsUseCase(repo repository.ChatRepository) *ListUnreadCountsUseCase {
	return &ListUnreadCountsUseCase{Repo: repo}
}

// Execute returns unread counts keyed by conversation id
func (uc *ListUnreadCountsUseCase) Execute(ctx context.Context, in ListUnreadCountsInput) (map[int64]int64, error) {
	if err := in.Caller.Validate(); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(in.ConversationIDs))
	seen := make(map[int64]struct{}, len(in.ConversationIDs))
	for _, id := range in.ConversationIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	res := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	counts, err := uc.Repo.CountUnreadBatch(ctx, in.Caller.UserID, ids)
	if err != nil {
		return nil, persistenceErr(err)
	}
	for _, id := range ids {
		res[id] = counts[id]
	}
	return res, nil
}
