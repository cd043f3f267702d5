package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
	"go-mentorchat/internal/pkg/chat/persistence/repository/adapter"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type broadcast struct {
	topic   string
	message chat.Message
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *recordingBroadcaster) Broadcast(topic string, payload []byte) int {
	var m chat.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		panic(err)
	}
	b.mu.Lock()
	b.sent = append(b.sent, broadcast{topic: topic, message: m})
	b.mu.Unlock()
	return 1
}

func (b *recordingBroadcaster) all() []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.sent...)
}

func (b *recordingBroadcaster) kinds() []chat.Kind {
	var kinds []chat.Kind
	for _, s := range b.all() {
		kinds = append(kinds, s.message.Kind)
	}
	return kinds
}

type notification struct {
	recipientID int64
	kind        string
}

type fakeNotifier struct {
	mu    sync.Mutex
	got   []notification
	fail  error
	block chan struct{} // when set, Notify waits for it to close
}

func (n *fakeNotifier) Notify(ctx context.Context, recipientID int64, kind string) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, notification{recipientID: recipientID, kind: kind})
	return n.fail
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.got...)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []port.AuditEntry
	fail    error
}

func (a *recordingAudit) Record(ctx context.Context, e port.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return a.fail
}

func (a *recordingAudit) events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var events []string
	for _, e := range a.entries {
		events = append(events, e.Event)
	}
	return events
}

var errStoreDown = errors.New("store down")

// brokenRepo fails selected operations on top of the in-memory store.
type brokenRepo struct {
	*adapter.MemoryChatRepository
	failSave        bool
	failMarkAllRead bool
}

func (r *brokenRepo) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if r.failSave {
		return chat.Message{}, errStoreDown
	}
	return r.MemoryChatRepository.SaveMessage(ctx, m)
}

func (r *brokenRepo) MarkAllRead(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	if r.failMarkAllRead {
		return 0, errStoreDown
	}
	return r.MemoryChatRepository.MarkAllRead(ctx, conversationID, readerID)
}

// racingRepo hides the pair on the first lookup and reports a conflict on insert, the way a
// concurrent creator on another node would.
type racingRepo struct {
	*adapter.MemoryChatRepository
	mu      sync.Mutex
	lookups int
}

func (r *racingRepo) FindConversationByPair(ctx context.Context, a, b int64) (chat.Conversation, error) {
	r.mu.Lock()
	r.lookups++
	first := r.lookups == 1
	r.mu.Unlock()
	if first {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	return r.MemoryChatRepository.FindConversationByPair(ctx, a, b)
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

var (
	mentor   = chat.Caller{UserID: 100, Role: chat.RoleMentor}
	mentee   = chat.Caller{UserID: 200, Role: chat.RoleMentee}
	outsider = chat.Caller{UserID: 300, Role: chat.RoleMentee}
)

type fixture struct {
	repo     *brokenRepo
	bus      *recordingBroadcaster
	notifier *fakeNotifier
	audit    *recordingAudit
	unread   *UnreadCounter
	seq      *Sequencer
	logger   *zap.Logger

	getOrCreate *GetOrCreateConversationUseCase
	send        *SendMessageUseCase
	enter       *EnterConversationUseCase
	exit        *ExitConversationUseCase
	markAllRead *MarkAllReadUseCase
	unreadCount *UnreadCountUseCase
	unreadBatch *ListUnreadCountsUseCase
	close       *CloseConversationUseCase
	flag        *FlagConversationUseCase
	history     *GetHistoryUseCase
	list        *ListConversationsUseCase
}

const testMaxLen = 10

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, zap.NewNop())
}

func newFixtureWithLogger(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	f := &fixture{
		repo:     &brokenRepo{MemoryChatRepository: adapter.NewMemoryChatRepository()},
		bus:      &recordingBroadcaster{},
		notifier: &fakeNotifier{},
		audit:    &recordingAudit{},
		seq:      NewSequencer(),
		logger:   logger,
	}
	f.unread = NewUnreadCounter(f.repo, nil, time.Minute, logger)
	f.wire()
	return f
}

func (f *fixture) wire() {
	f.getOrCreate = NewGetOrCreateConversationUseCase(f.repo, f.audit, f.logger)
	f.send = NewSendMessageUseCase(f.repo, f.bus, f.notifier, f.unread, f.seq, testMaxLen, f.logger)
	f.enter = NewEnterConversationUseCase(f.repo, f.bus, f.unread, f.seq, f.logger)
	f.exit = NewExitConversationUseCase(f.repo, f.bus, f.seq, f.logger)
	f.markAllRead = NewMarkAllReadUseCase(f.repo, f.unread)
	f.unreadCount = NewUnreadCountUseCase(f.repo, f.unread)
	f.unreadBatch = NewListUnreadCountsUseCase(f.repo)
	f.close = NewCloseConversationUseCase(f.repo, f.audit, f.seq, f.logger)
	f.flag = NewFlagConversationUseCase(f.repo, f.audit, f.logger)
	f.history = NewGetHistoryUseCase(f.repo, 20)
	f.list = NewListConversationsUseCase(f.repo, 20)
}

func (f *fixture) conversation(t *testing.T) chat.Conversation {
	t.Helper()
	out, err := f.getOrCreate.Execute(context.Background(), GetOrCreateConversationInput{Caller: mentor, CounterpartID: mentee.UserID})
	require.NoError(t, err)
	return out.Conversation
}

func (f *fixture) sendText(t *testing.T, caller chat.Caller, convID int64, text string) chat.Message {
	t.Helper()
	msg, err := f.send.Execute(context.Background(), SendMessageInput{Caller: caller, ConversationID: convID, Text: text})
	require.NoError(t, err)
	return *msg
}

func (f *fixture) unreadOf(t *testing.T, caller chat.Caller, convID int64) int64 {
	t.Helper()
	n, err := f.unreadCount.Execute(context.Background(), UnreadCountInput{Caller: caller, ConversationID: convID})
	require.NoError(t, err)
	return n
}

// interleavingRepo runs during once, after the store answered CountUnread and before the count
// reaches the caller.
type interleavingRepo struct {
	repository.ChatRepository
	during func()
}

func (r *interleavingRepo) CountUnread(ctx context.Context, conversationID int64, userID int64) (int64, error) {
	n, err := r.ChatRepository.CountUnread(ctx, conversationID, userID)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return n, err
}
