package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type CloseConversationInput struct {
	Caller         chat.Caller
	ConversationID int64
}

// CloseConversationUseCase moves a conversation to CLOSED. Closing twice is a no-op and writes no
// audit entry. Only a party may close.
type CloseConversationUseCase struct {
	Repo      repository.ChatRepository
	Audit     port.AuditLog
	Sequencer *Sequencer
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewCloseConversationUseCase shares seq with the send path so no message lands after the close.
func NewCloseConversationUseCase(repo repository.ChatRepository, audit port.AuditLog, seq *Sequencer, logger *zap.Logger) *CloseConversationUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloseConversationUseCase{Repo: repo, Audit: audit, Sequencer: seq, Logger: logger, Now: time.Now}
}

// Execute closes the conversation and audits the first transition only
func (uc *CloseConversationUseCase) Execute(ctx context.Context, in CloseConversationInput) (*chat.Conversation, error) {
	unlock := uc.Sequencer.Lock(in.ConversationID)
	before, _, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		unlock()
		return nil, err
	}
	at := uc.Now().UTC()
	changed, err := uc.Repo.CloseConversation(ctx, before.ID, at)
	unlock()
	if err != nil {
		return nil, persistenceErr(err)
	}
	if !changed {
		return &before, nil
	}

	after := before
	after.Status = chat.StatusClosed
	after.ClosedAt = &at
	recordAudit(ctx, uc.Audit, uc.Logger, port.AuditEntry{
		ActorID: in.Caller.UserID,
		Event:   port.AuditEventClose,
		Before:  &before,
		After:   after,
		At:      at,
	})
	return &after, nil
}
