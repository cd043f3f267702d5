package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	cacheAdapter "go-mentorchat/internal/infrastructure/cache/adapter"
	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
)

func TestSendMessage_ReadFlagFollowsRecipientPresence(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	away := f.sendText(t, mentee, conv.ID, "  hello  ")
	assert.False(t, away.Read)
	assert.Equal(t, "hello", *away.Text)
	assert.Equal(t, chat.KindText, away.Kind)

	_, err := f.enter.Execute(ctx, EnterConversationInput{Caller: mentor, ConversationID: conv.ID})
	require.NoError(t, err)

	present := f.sendText(t, mentee, conv.ID, "again")
	assert.True(t, present.Read)

	// the sender's own presence does not matter
	_, err = f.exit.Execute(ctx, ExitConversationInput{Caller: mentor, ConversationID: conv.ID})
	require.NoError(t, err)
	_, err = f.enter.Execute(ctx, EnterConversationInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.False(t, f.sendText(t, mentee, conv.ID, "third").Read)
}

func TestSendMessage_BroadcastsAndNotifies(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)

	msg := f.sendText(t, mentor, conv.ID, "hi")

	sent := f.bus.all()
	require.Len(t, sent, 1)
	assert.Equal(t, fmt.Sprintf("room/%d", conv.ID), sent[0].topic)
	assert.Equal(t, msg.ID, sent[0].message.ID)
	assert.Equal(t, mentor.UserID, sent[0].message.SenderID)
	assert.Equal(t, "hi", *sent[0].message.Text)

	f.send.Wait()
	assert.Equal(t, []notification{{recipientID: mentee.UserID, kind: port.NotificationKindChat}}, f.notifier.all())
}

func TestSendMessage_Rejections(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller chat.Caller
		convID int64
		text   string
		want   error
	}{
		{"blank", mentor, conv.ID, "   ", chat.ErrInvalid},
		{"too long", mentor, conv.ID, "01234567890", chat.ErrInvalid},
		{"missing conversation", mentor, conv.ID + 1, "hi", chat.ErrNotFound},
		{"non party", outsider, conv.ID, "hi", chat.ErrForbidden},
		{"non party blank", outsider, conv.ID, "  ", chat.ErrForbidden},
		{"missing conversation blank", mentor, conv.ID + 1, "", chat.ErrNotFound},
		{"no role", chat.Caller{UserID: mentor.UserID}, conv.ID, "hi", chat.ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.send.Execute(ctx, SendMessageInput{Caller: tc.caller, ConversationID: tc.convID, Text: tc.text})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	f.send.Wait()
	assert.Empty(t, f.bus.all())
	assert.Empty(t, f.notifier.all())
	n, err := f.repo.CountUnread(ctx, conv.ID, mentee.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSendMessage_PersistenceFailureStopsRelay(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	f.repo.failSave = true

	_, err := f.send.Execute(context.Background(), SendMessageInput{Caller: mentor, ConversationID: conv.ID, Text: "hi"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, f.bus.all())
	assert.Empty(t, f.notifier.all())
}

func TestSendMessage_NotifyFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixtureWithLogger(t, zap.New(core))
	conv := f.conversation(t)
	f.notifier.fail = errors.New("queue unavailable")

	msg := f.sendText(t, mentor, conv.ID, "hi")
	assert.NotZero(t, msg.ID)
	assert.Len(t, f.bus.all(), 1)

	f.send.Wait()
	entries := logs.FilterMessage("notify failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, mentee.UserID, entries[0].ContextMap()["recipientId"])
}

func TestSendMessage_DoesNotWaitForNotifier(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	f.notifier.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	msg, err := f.send.Execute(ctx, SendMessageInput{Caller: mentor, ConversationID: conv.ID, Text: "hi"})
	cancel()
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Len(t, f.bus.all(), 1)
	assert.Empty(t, f.notifier.all())

	// a finished request does not cancel the pending notification
	close(f.notifier.block)
	f.send.Wait()
	assert.Equal(t, []notification{{recipientID: mentee.UserID, kind: port.NotificationKindChat}}, f.notifier.all())
}

func TestSendMessage_ConcurrentSendsBroadcastInIDOrder(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)

	const senders = 40
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := mentor
			if i%2 == 0 {
				caller = mentee
			}
			_, err := f.send.Execute(context.Background(), SendMessageInput{Caller: caller, ConversationID: conv.ID, Text: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sent := f.bus.all()
	require.Len(t, sent, senders)
	for i := 1; i < len(sent); i++ {
		assert.Greater(t, sent[i].message.ID, sent[i-1].message.ID)
	}

	history, err := f.repo.GetMessagesByConversation(context.Background(), conv.ID, senders, 0)
	require.NoError(t, err)
	require.Len(t, history, senders)
	assert.Equal(t, sent[len(sent)-1].message.ID, history[0].ID)
}

func TestEnterConversation_MarksReadOnceAndAnnounces(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	f.sendText(t, mentee, conv.ID, "one")
	f.sendText(t, mentee, conv.ID, "two")
	f.sendText(t, mentor, conv.ID, "mine")
	assert.Equal(t, int64(2), f.unreadOf(t, mentor, conv.ID))

	out, err := f.enter.Execute(ctx, EnterConversationInput{Caller: mentor, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, int64(2), out.MarkedRead)
	assert.True(t, out.Conversation.MentorIn)
	assert.Zero(t, f.unreadOf(t, mentor, conv.ID))
	// the mentee's own unread message stays unread
	assert.Equal(t, int64(1), f.unreadOf(t, mentee, conv.ID))

	again, err := f.enter.Execute(ctx, EnterConversationInput{Caller: mentor, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.True(t, again.Conversation.MentorIn)

	assert.Equal(t, []chat.Kind{chat.KindText, chat.KindText, chat.KindText, chat.KindEnter}, f.bus.kinds())
	enter := f.bus.all()[3].message
	assert.Equal(t, mentor.UserID, enter.SenderID)
	assert.Nil(t, enter.Text)
	assert.Zero(t, enter.ID)

	// presence events are not stored
	history, err := f.repo.GetMessagesByConversation(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestEnterConversation_RollsBackOnReadFailure(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	f.repo.failMarkAllRead = true

	_, err := f.enter.Execute(context.Background(), EnterConversationInput{Caller: mentee, ConversationID: conv.ID})
	assert.ErrorIs(t, err, ErrPersistence)

	stored, err := f.repo.FindConversationByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.False(t, stored.MenteeIn)
	assert.Empty(t, f.bus.all())
}

func TestPresence_PartyOnly(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	_, err := f.enter.Execute(ctx, EnterConversationInput{Caller: outsider, ConversationID: conv.ID})
	assert.ErrorIs(t, err, chat.ErrForbidden)
	_, err = f.exit.Execute(ctx, ExitConversationInput{Caller: outsider, ConversationID: conv.ID})
	assert.ErrorIs(t, err, chat.ErrForbidden)
	_, err = f.enter.Execute(ctx, EnterConversationInput{Caller: mentor, ConversationID: 999})
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestExitConversation_Idempotent(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	out, err := f.exit.Execute(ctx, ExitConversationInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.False(t, out.Changed)

	_, err = f.enter.Execute(ctx, EnterConversationInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	out, err = f.exit.Execute(ctx, ExitConversationInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.False(t, out.Conversation.MenteeIn)

	assert.Equal(t, []chat.Kind{chat.KindEnter, chat.KindExit}, f.bus.kinds())
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	f.sendText(t, mentor, conv.ID, "a")
	f.sendText(t, mentor, conv.ID, "b")

	n, err := f.markAllRead.Execute(ctx, MarkAllReadInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Zero(t, f.unreadOf(t, mentee, conv.ID))

	n, err = f.markAllRead.Execute(ctx, MarkAllReadInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.markAllRead.Execute(ctx, MarkAllReadInput{Caller: outsider, ConversationID: conv.ID})
	assert.ErrorIs(t, err, chat.ErrForbidden)
}

func TestUnreadCount_CachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	f.unread = NewUnreadCounter(f.repo, cacheAdapter.NewRedisAdapter(client, "mentorchat"), time.Minute, nil)
	f.wire()
	conv := f.conversation(t)
	ctx := context.Background()
	key := "mentorchat:" + UnreadKey(conv.ID, mentee.UserID)

	f.sendText(t, mentor, conv.ID, "a")
	assert.Equal(t, int64(1), f.unreadOf(t, mentee, conv.ID))
	cached, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "1", cached)
	assert.Greater(t, mr.TTL(key), time.Duration(0))

	// a send invalidates the recipient's entry
	f.sendText(t, mentor, conv.ID, "b")
	assert.False(t, mr.Exists(key))
	assert.Equal(t, int64(2), f.unreadOf(t, mentee, conv.ID))

	_, err = f.markAllRead.Execute(ctx, MarkAllReadInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
	assert.Zero(t, f.unreadOf(t, mentee, conv.ID))
}

func TestUnreadCount_WriteDuringReadSkipsRepopulation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	counting := &interleavingRepo{ChatRepository: f.repo}
	f.unread = NewUnreadCounter(counting, cacheAdapter.NewRedisAdapter(client, ""), time.Minute, nil)
	f.wire()
	conv := f.conversation(t)
	key := UnreadKey(conv.ID, mentee.UserID)

	f.sendText(t, mentor, conv.ID, "a")
	counting.during = func() { f.sendText(t, mentor, conv.ID, "b") }

	// the count read before the second send is returned but not cached
	assert.Equal(t, int64(1), f.unreadOf(t, mentee, conv.ID))
	assert.False(t, mr.Exists(key))
	assert.Equal(t, int64(2), f.unreadOf(t, mentee, conv.ID))
	cached, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", cached)
}

func TestUnreadCount_FallsBackWhenCacheIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	f.unread = NewUnreadCounter(f.repo, cacheAdapter.NewRedisAdapter(client, ""), time.Minute, nil)
	f.wire()
	conv := f.conversation(t)
	f.sendText(t, mentor, conv.ID, "a")

	mr.Close()
	assert.Equal(t, int64(1), f.unreadOf(t, mentee, conv.ID))
}

func TestListUnreadCounts(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	other, err := f.getOrCreate.Execute(context.Background(), GetOrCreateConversationInput{Caller: mentor, CounterpartID: 201})
	require.NoError(t, err)

	f.sendText(t, mentor, conv.ID, "a")
	f.sendText(t, mentor, conv.ID, "b")

	counts, err := f.unreadBatch.Execute(context.Background(), ListUnreadCountsInput{
		Caller:          mentee,
		ConversationIDs: []int64{conv.ID, other.Conversation.ID, conv.ID, 999},
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{conv.ID: 2, other.Conversation.ID: 0, 999: 0}, counts)

	empty, err := f.unreadBatch.Execute(context.Background(), ListUnreadCountsInput{Caller: mentee})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetHistory_PagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		f.sendText(t, mentor, conv.ID, fmt.Sprintf("m%d", i))
	}

	page1, err := f.history.Execute(ctx, GetHistoryInput{Caller: mentee, ConversationID: conv.ID, Page: 1})
	require.NoError(t, err)
	require.Len(t, page1, 20)
	assert.Equal(t, "m25", *page1[0].Text)
	assert.Equal(t, "m6", *page1[19].Text)

	page2, err := f.history.Execute(ctx, GetHistoryInput{Caller: mentee, ConversationID: conv.ID, Page: 2})
	require.NoError(t, err)
	require.Len(t, page2, 5)
	assert.Equal(t, "m1", *page2[4].Text)

	page3, err := f.history.Execute(ctx, GetHistoryInput{Caller: mentee, ConversationID: conv.ID, Page: 3})
	require.NoError(t, err)
	assert.Empty(t, page3)
	assert.NotNil(t, page3)

	first, err := f.history.Execute(ctx, GetHistoryInput{Caller: mentee, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, page1, first)

	_, err = f.history.Execute(ctx, GetHistoryInput{Caller: outsider, ConversationID: conv.ID})
	assert.ErrorIs(t, err, chat.ErrForbidden)
}

func TestListConversations_SummaryRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quiet := f.conversation(t)
	busy, err := f.getOrCreate.Execute(ctx, GetOrCreateConversationInput{Caller: mentor, CounterpartID: 201})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	f.sendText(t, chat.Caller{UserID: 201, Role: chat.RoleMentee}, busy.Conversation.ID, "ping")

	rows, err := f.list.Execute(ctx, ListConversationsInput{Caller: mentor, Page: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, busy.Conversation.ID, rows[0].Conversation.ID)
	assert.Equal(t, int64(201), rows[0].CounterpartID)
	require.NotNil(t, rows[0].LastMessage)
	assert.Equal(t, "ping", *rows[0].LastMessage.Text)
	assert.Equal(t, int64(1), rows[0].Unread)

	assert.Equal(t, quiet.ID, rows[1].Conversation.ID)
	assert.Nil(t, rows[1].LastMessage)
	assert.Zero(t, rows[1].Unread)

	menteeRows, err := f.list.Execute(ctx, ListConversationsInput{Caller: mentee})
	require.NoError(t, err)
	require.Len(t, menteeRows, 1)
	assert.Equal(t, mentor.UserID, menteeRows[0].CounterpartID)

	none, err := f.list.Execute(ctx, ListConversationsInput{Caller: mentor, Page: 2})
	require.NoError(t, err)
	assert.Empty(t, none)
}
