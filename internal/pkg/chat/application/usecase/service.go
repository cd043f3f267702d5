package usecase

import (
	"time"

	"go.uber.org/zap"

	cport "go-mentorchat/internal/infrastructure/cache/port"
	"go-mentorchat/internal/pkg/chat/application/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

// Dependencies are the collaborators shared by the chat use cases. Cache, Notifier and Audit
// may be nil.
type Dependencies struct {
	Repo        repository.ChatRepository
	Broadcaster port.Broadcaster
	Notifier    port.Notifier
	Audit       port.AuditLog
	Cache       cport.Cache
	Logger      *zap.Logger

	UnreadTTL        time.Duration
	PageSize         int
	MaxMessageLength int
}

// Service groups one instance of every chat use case over a single sequencer, so that all
// writers of a conversation in this process are ordered by the same lock.
type Service struct {
	GetOrCreateConversation *GetOrCreateConversationUseCase
	GetConversation         *GetConversationUseCase
	FindConversationByPair  *FindConversationByPairUseCase
	ListConversations       *ListConversationsUseCase
	EnterConversation       *EnterConversationUseCase
	ExitConversation        *ExitConversationUseCase
	SendMessage             *SendMessageUseCase
	GetHistory              *GetHistoryUseCase
	MarkAllRead             *MarkAllReadUseCase
	UnreadCount             *UnreadCountUseCase
	ListUnreadCounts        *ListUnreadCountsUseCase
	CloseConversation       *CloseConversationUseCase
	FlagConversation        *FlagConversationUseCase
}

func NewService(d Dependencies) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seq := NewSequencer()
	unread := NewUnreadCounter(d.Repo, d.Cache, d.UnreadTTL, logger)

	return &Service{
		GetOrCreateConversation: NewGetOrCreateConversationUseCase(d.Repo, d.Audit, logger),
		GetConversation:         NewGetConversationUseCase(d.Repo),
		FindConversationByPair:  NewFindConversationByPairUseCase(d.Repo),
		ListConversations:       NewListConversationsUseCase(d.Repo, d.PageSize),
		EnterConversation:       NewEnterConversationUseCase(d.Repo, d.Broadcaster, unread, seq, logger),
		ExitConversation:        NewExitConversationUseCase(d.Repo, d.Broadcaster, seq, logger),
		SendMessage:             NewSendMessageUseCase(d.Repo, d.Broadcaster, d.Notifier, unread, seq, d.MaxMessageLength, logger),
		GetHistory:              NewGetHistoryUseCase(d.Repo, d.PageSize),
		MarkAllRead:             NewMarkAllReadUseCase(d.Repo, unread),
		UnreadCount:             NewUnreadCountUseCase(d.Repo, unread),
		ListUnreadCounts:        NewListUnreadCountsUseCase(d.Repo),
		CloseConversation:       NewCloseConversationUseCase(d.Repo, d.Audit, seq, logger),
		FlagConversation:        NewFlagConversationUseCase(d.Repo, d.Audit, logger),
	}
}
