package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-mentorchat/internal/config"
	chat "go-mentorchat/internal/pkg/chat/application/domain"
)

func TestOpenStore_EmbeddedDrivers(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.Config{Database: config.DatabaseConfig{
				Driver:     driver,
				SQLitePath: filepath.Join(t.TempDir(), "chat.db"),
			}}
			in, err := openStore(context.Background(), cfg, zap.NewNop())
			require.NoError(t, err)
			defer in.Close()

			assert.Nil(t, in.pool)
			assert.Nil(t, in.cache())
			require.NoError(t, in.connectRedis(cfg))
			assert.Nil(t, in.redis)

			conv, err := chat.NewConversation(1, 2, time.Now())
			require.NoError(t, err)
			stored, err := in.repo.CreateConversation(context.Background(), *conv)
			require.NoError(t, err)
			assert.NotZero(t, stored.ID)
		})
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), &config.Config{Database: config.DatabaseConfig{Driver: "oracle"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestInspectHelpers(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "mentor in / mentee out", presence(chat.Conversation{MentorIn: true}))

	inspectUserID, inspectRole = 0, "mentor"
	_, err := inspectCaller()
	assert.Error(t, err)

	inspectUserID, inspectRole = 5, "mentee"
	caller, err := inspectCaller()
	require.NoError(t, err)
	assert.Equal(t, chat.Caller{UserID: 5, Role: chat.RoleMentee}, caller)
}
