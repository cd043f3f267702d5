package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

const getOrCreateAttempts = 3

// GetOrCreateConversationInput names the counterpart; the caller's role decides which seat each
// party takes.
type GetOrCreateConversationInput struct {
	Caller        chat.Caller
	CounterpartID int64
}

type GetOrCreateConversationOutput struct {
	Conversation chat.Conversation
	Created      bool
}

// GetOrCreateConversationUseCase returns the single conversation of a pair, creating it on first use.
// Concurrent callers for the same pair all observe the same conversation.
type GetOrCreateConversationUseCase struct {
	Repo   repository.ChatRepository
	Audit  port.AuditLog
	Logger *zap.Logger
	Now    func() time.Time
}

func NewGetOrCreateConversationUseCase(repo repository.ChatRepository, audit port.AuditLog, logger *zap.Logger) *GetOrCreateConversationUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GetOrCreateConversationUseCase{Repo: repo, Audit: audit, Logger: logger, Now: time.Now}
}

// Execute finds the pair's conversation or persists a new one, retrying the lookup when a
// concurrent insert wins
func (uc *GetOrCreateConversationUseCase) Execute(ctx context.Context, in GetOrCreateConversationInput) (*GetOrCreateConversationOutput, error) {
	if err := in.Caller.Validate(); err != nil {
		return nil, err
	}
	mentorID, menteeID := in.Caller.Pair(in.CounterpartID)
	draft, err := chat.NewConversation(mentorID, menteeID, uc.Now())
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		existing, err := uc.Repo.FindConversationByPair(ctx, mentorID, menteeID)
		if err == nil {
			return &GetOrCreateConversationOutput{Conversation: existing}, nil
		}
		if !errors.Is(err, chat.ErrNotFound) {
			return nil, persistenceErr(err)
		}

		created, err := uc.Repo.CreateConversation(ctx, *draft)
		if err == nil {
			recordAudit(ctx, uc.Audit, uc.Logger, port.AuditEntry{
				ActorID: in.Caller.UserID,
				Event:   port.AuditEventCreate,
				After:   created,
				At:      created.CreatedAt,
			})
			return &GetOrCreateConversationOutput{Conversation: created, Created: true}, nil
		}
		if !errors.Is(err, chat.ErrConflict) {
			return nil, persistenceErr(err)
		}
		// lost the insert race; the winner is visible on the next read
	}
	return nil, fmt.Errorf("%w: conversation for pair (%d, %d) kept conflicting", ErrPersistence, mentorID, menteeID)
}

// recordAudit never fails the caller; the state change already happened.
func recordAudit(ctx context.Context, audit port.AuditLog, logger *zap.Logger, e port.AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, e); err != nil {
		logger.Warn("audit record failed",
			zap.String("event", e.Event),
			zap.Int64("conversationId", e.After.ID),
			zap.Int64("actorId", e.ActorID),
			zap.Error(err))
	}
}
