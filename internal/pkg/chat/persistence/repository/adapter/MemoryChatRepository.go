package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

type pairKey struct{ low, high int64 }

// MemoryChatRepository keeps conversations and messages in process memory.
// It backs the "memory" database driver and the use case tests.
type MemoryChatRepository struct {
	mu            sync.RWMutex
	nextConvID    int64
	nextMsgID     int64
	conversations map[int64]*chat.Conversation
	pairs         map[pairKey]int64
	messages      map[int64][]chat.Message // conversationID -> messages in persistence order
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[int64]*chat.Conversation),
		pairs:         make(map[pairKey]int64),
		messages:      make(map[int64][]chat.Message),
	}
}

var _ repository.ChatRepository = (*MemoryChatRepository)(nil)

func (r *MemoryChatRepository) CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error) {
	low, high := c.PairKey()
	key := pairKey{low, high}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[key]; ok {
		return chat.Conversation{}, chat.ErrConflict
	}
	r.nextConvID++
	c.ID = r.nextConvID
	stored := c
	r.conversations[c.ID] = &stored
	r.pairs[key] = c.ID
	return c, nil
}

func (r *MemoryChatRepository) FindConversationByID(ctx context.Context, id int64) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	return *c, nil
}

func (r *MemoryChatRepository) FindConversationByPair(ctx context.Context, a, b int64) (chat.Conversation, error) {
	low, high := chat.PairKey(a, b)

	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pairs[pairKey{low, high}]
	if !ok {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	return *r.conversations[id], nil
}

func (r *MemoryChatRepository) ListConversationsByParty(ctx context.Context, userID int64, side chat.Side, limit int, offset int) ([]chat.Conversation, error) {
	limit, offset = normalizePage(limit, offset)

	r.mu.RLock()
	var convs []chat.Conversation
	for _, c := range r.conversations {
		if c.PartyID(side) == userID {
			convs = append(convs, *c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].LastActivityAt.Equal(convs[j].LastActivityAt) {
			return convs[i].LastActivityAt.After(convs[j].LastActivityAt)
		}
		return convs[i].ID > convs[j].ID
	})
	if offset >= len(convs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(convs) {
		end = len(convs)
	}
	return convs[offset:end], nil
}

func (r *MemoryChatRepository) SetPresence(ctx context.Context, conversationID int64, side chat.Side, present bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return false, chat.ErrConversationNotFound
	}
	return c.SetPresent(side, present), nil
}

func (r *MemoryChatRepository) CloseConversation(ctx context.Context, conversationID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return false, chat.ErrConversationNotFound
	}
	if c.Status == chat.StatusClosed {
		return false, nil
	}
	at = at.UTC()
	c.Status = chat.StatusClosed
	c.ClosedAt = &at
	return true, nil
}

func (r *MemoryChatRepository) FlagConversation(ctx context.Context, conversationID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return false, chat.ErrConversationNotFound
	}
	if c.Flagged {
		return false, nil
	}
	at = at.UTC()
	c.Flagged = true
	c.FlaggedAt = &at
	return true, nil
}

func (r *MemoryChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[m.ConversationID]
	if !ok {
		return chat.Message{}, chat.ErrConversationNotFound
	}
	r.nextMsgID++
	m.ID = r.nextMsgID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	if m.CreatedAt.After(c.LastActivityAt) {
		c.LastActivityAt = m.CreatedAt
	}
	return m, nil
}

func (r *MemoryChatRepository) GetMessagesByConversation(ctx context.Context, conversationID int64, limit int, offset int) ([]chat.Message, error) {
	limit, offset = normalizePage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.messages[conversationID]
	var out []chat.Message
	// newest first
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *MemoryChatRepository) LastMessages(ctx context.Context, conversationIDs []int64) (map[int64]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make(map[int64]chat.Message, len(conversationIDs))
	for _, id := range conversationIDs {
		if msgs := r.messages[id]; len(msgs) > 0 {
			res[id] = msgs[len(msgs)-1]
		}
	}
	return res, nil
}

func (r *MemoryChatRepository) MarkAllRead(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[conversationID]
	var n int64
	for i := range msgs {
		if isUnreadFor(msgs[i], readerID) {
			msgs[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryChatRepository) CountUnread(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countUnreadLocked(conversationID, readerID), nil
}

func (r *MemoryChatRepository) CountUnreadBatch(ctx context.Context, readerID int64, conversationIDs []int64) (map[int64]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make(map[int64]int64)
	for _, id := range conversationIDs {
		c, ok := r.conversations[id]
		if !ok || (c.MentorID != readerID && c.MenteeID != readerID) {
			continue
		}
		if n := r.countUnreadLocked(id, readerID); n > 0 {
			res[id] = n
		}
	}
	return res, nil
}

func (r *MemoryChatRepository) countUnreadLocked(conversationID int64, readerID int64) int64 {
	var n int64
	for _, m := range r.messages[conversationID] {
		if isUnreadFor(m, readerID) {
			n++
		}
	}
	return n
}

func isUnreadFor(m chat.Message, readerID int64) bool {
	return m.Kind == chat.KindText && m.SenderID != readerID && !m.Read
}
