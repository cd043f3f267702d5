package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-mentorchat/internal/config"
	"go-mentorchat/internal/infrastructure/queue/port"
)

func TestParseQueueWeights(t *testing.T) {
	assert.Equal(t, map[string]int{"notify": 3, "default": 1}, parseQueueWeights("notify=3, default=1"))
	assert.Equal(t, map[string]int{"notify": 1, "low": 1}, parseQueueWeights("notify,low=x"))
	assert.Empty(t, parseQueueWeights(" , ="))
}

func TestNewAsynqClient_RequiresURL(t *testing.T) {
	_, err := NewAsynqClient("")
	assert.Error(t, err)

	_, err = NewAsynqServer("", config.QueueConfig{}, nil)
	assert.Error(t, err)
}

func TestAsynqClient_RejectsUntypedTask(t *testing.T) {
	c, err := NewAsynqClient("redis://127.0.0.1:6379/0")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Enqueue(context.Background(), port.Task{})
	assert.Error(t, err)
}
