package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	cport "go-mentorchat/internal/infrastructure/cache/port"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

// UnreadCounter reads per-party unread counts through an optional cache.
// Entries live at unread:{conversationId}:{userId}; writers invalidate, readers repopulate.
// A cache failure never fails the caller: it falls back to the repository.
//
// Each key hashes onto a generation stripe. Invalidate bumps it, and Count only repopulates when
// no invalidation on this node ran while it read the store.
type UnreadCounter struct {
	Repo   repository.ChatRepository
	Cache  cport.Cache // nil disables caching
	TTL    time.Duration
	Logger *zap.Logger

	gens [sequencerStripes]unreadGeneration
}

type unreadGeneration struct {
	mu sync.Mutex
	n  uint64
}

func NewUnreadCounter(repo repository.ChatRepository, cache cport.Cache, ttl time.Duration, logger *zap.Logger) *UnreadCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnreadCounter{Repo: repo, Cache: cache, TTL: ttl, Logger: logger}
}

// UnreadKey is the cache key of one party's unread count.
func UnreadKey(conversationID, userID int64) string {
	return fmt.Sprintf("unread:%d:%d", conversationID, userID)
}

func (u *UnreadCounter) generation(conversationID, userID int64) *unreadGeneration {
	h := uint64(conversationID)*31 + uint64(userID)
	return &u.gens[h%sequencerStripes]
}

// Count returns the unread count for userID, from the cache when it holds one.
func (u *UnreadCounter) Count(ctx context.Context, conversationID, userID int64) (int64, error) {
	key := UnreadKey(conversationID, userID)
	if u.Cache != nil {
		v, err := u.Cache.Get(ctx, key)
		switch {
		case err == nil:
			if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				return n, nil
			}
		case !errors.Is(err, cport.ErrMiss):
			u.Logger.Warn("unread cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	gen := u.generation(conversationID, userID)
	gen.mu.Lock()
	seen := gen.n
	gen.mu.Unlock()

	n, err := u.Repo.CountUnread(ctx, conversationID, userID)
	if err != nil {
		return 0, persistenceErr(err)
	}

	if u.Cache != nil {
		gen.mu.Lock()
		if gen.n == seen {
			if err := u.Cache.Set(ctx, key, strconv.FormatInt(n, 10), u.TTL); err != nil {
				u.Logger.Warn("unread cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		gen.mu.Unlock()
	}
	return n, nil
}

// Invalidate drops the cached count after a write that changed it.
func (u *UnreadCounter) Invalidate(ctx context.Context, conversationID, userID int64) {
	if u == nil || u.Cache == nil {
		return
	}
	gen := u.generation(conversationID, userID)
	gen.mu.Lock()
	defer gen.mu.Unlock()
	gen.n++

	key := UnreadKey(conversationID, userID)
	if _, err := u.Cache.Del(ctx, key); err != nil {
		u.Logger.Warn("unread cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
