package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type ExitConversationInput struct {
	Caller         chat.Caller
	ConversationID int64
}

type ExitConversationOutput struct {
	Conversation chat.Conversation
	Changed      bool
}

// ExitConversationUseCase marks the caller's side absent. Every device of a party shares one flag.
type ExitConversationUseCase struct {
	Repo        repository.ChatRepository
	Broadcaster port.Broadcaster
	Sequencer   *Sequencer
	Logger      *zap.Logger
	Now         func() time.Time
}

func NewExitConversationUseCase(repo repository.ChatRepository, broadcaster port.Broadcaster, seq *Sequencer, logger *zap.Logger) *ExitConversationUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExitConversationUseCase{Repo: repo, Broadcaster: broadcaster, Sequencer: seq, Logger: logger, Now: time.Now}
}

// Execute flips the caller absent and broadcasts EXIT; exiting twice reports no change
func (uc *ExitConversationUseCase) Execute(ctx context.Context, in ExitConversationInput) (*ExitConversationOutput, error) {
	unlock := uc.Sequencer.Lock(in.ConversationID)
	defer unlock()

	conv, side, err := loadAsParty(ctx, uc.Repo, in.Caller, in.ConversationID)
	if err != nil {
		return nil, err
	}
	changed, err := uc.Repo.SetPresence(ctx, conv.ID, side, false)
	if err != nil {
		return nil, persistenceErr(err)
	}
	conv.SetPresent(side, false)
	if changed {
		broadcastEvent(uc.Broadcaster, uc.Logger, chat.NewPresenceMessage(conv.ID, in.Caller.UserID, chat.KindExit, uc.Now()))
	}
	return &ExitConversationOutput{Conversation: conv, Changed: changed}, nil
}
