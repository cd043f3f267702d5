package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type FlagConversationInput struct {
	Caller         chat.Caller
	ConversationID int64
}

// FlagConversationUseCase marks a conversation for moderation review. Any authenticated caller may
// flag; messaging continues while flagged.
type FlagConversationUseCase struct {
	Repo   repository.ChatRepository
	Audit  port.AuditLog
	Logger *zap.Logger
	Now    func() time.Time
}

func NewFlagConversationUseCase(repo repository.ChatRepository, audit port.AuditLog, logger *zap.Logger) *FlagConversationUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlagConversationUseCase{Repo: repo, Audit: audit, Logger: logger, Now: time.Now}
}

// Execute sets the moderation flag and audits the first transition only
func (uc *FlagConversationUseCase) Execute(ctx context.Context, in FlagConversationInput) (*chat.Conversation, error) {
	if err := in.Caller.Validate(); err != nil {
		return nil, err
	}
	before, err := loadConversation(ctx, uc.Repo, in.ConversationID)
	if err != nil {
		return nil, err
	}
	at := uc.Now().UTC()
	changed, err := uc.Repo.FlagConversation(ctx, before.ID, at)
	if err != nil {
		return nil, persistenceErr(err)
	}
	if !changed {
		return &before, nil
	}

	after := before
	after.Flagged = true
	after.FlaggedAt = &at
	recordAudit(ctx, uc.Audit, uc.Logger, port.AuditEntry{
		ActorID: in.Caller.UserID,
		Event:   port.AuditEventFlag,
		Before:  &before,
		After:   after,
		At:      at,
	})
	return &after, nil
}
