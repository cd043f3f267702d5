package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	qport "go-mentorchat/internal/infrastructure/queue/port"
	"go-mentorchat/internal/pkg/chat/application/port"
)

// loopbackQueue is a Client and Server in one: Enqueue runs the registered handler inline.
type loopbackQueue struct {
	handlers map[string]qport.Handler
	opts     []qport.EnqueueOption
	errs     []error
}

func newLoopbackQueue() *loopbackQueue {
	return &loopbackQueue{handlers: make(map[string]qport.Handler)}
}

func (q *loopbackQueue) Enqueue(ctx context.Context, t qport.Task, opts ...qport.EnqueueOption) (string, error) {
	q.opts = append(q.opts, opts...)
	h, ok := q.handlers[t.Type]
	if !ok {
		return "", errors.New("no handler")
	}
	q.errs = append(q.errs, h(ctx, t))
	return "id-1", nil
}

func (q *loopbackQueue) Close() error                              { return nil }
func (q *loopbackQueue) Register(taskType string, h qport.Handler) { q.handlers[taskType] = h }
func (q *loopbackQueue) Run(ctx context.Context) error             { return nil }
func (q *loopbackQueue) Stop(ctx context.Context) error            { return nil }

type recordingSink struct {
	got []NotifyTaskPayload
}

func (s *recordingSink) Deliver(ctx context.Context, n NotifyTaskPayload) error {
	s.got = append(s.got, n)
	return nil
}

func TestQueueNotifier_RoundTrip(t *testing.T) {
	q := newLoopbackQueue()
	sink := &recordingSink{}
	RegisterNotifyTask(q, sink)

	n := NewQueueNotifier(q)
	require.NoError(t, n.Notify(context.Background(), 42, port.NotificationKindChat))

	require.Len(t, sink.got, 1)
	assert.Equal(t, int64(42), sink.got[0].RecipientID)
	assert.Equal(t, port.NotificationKindChat, sink.got[0].Kind)
	assert.False(t, sink.got[0].RaisedAt.IsZero())

	require.Len(t, q.opts, 1)
	assert.Equal(t, NotifyQueue, q.opts[0].Queue)
	assert.Equal(t, notifyMaxRetry, q.opts[0].MaxRetry)
}

func TestRegisterNotifyTask_MalformedPayloadSkipsRetry(t *testing.T) {
	q := newLoopbackQueue()
	RegisterNotifyTask(q, &recordingSink{})

	_, err := q.Enqueue(context.Background(), qport.Task{Type: NotifyTaskType, Payload: []byte("{")})
	require.NoError(t, err)
	require.Len(t, q.errs, 1)
	assert.ErrorIs(t, q.errs[0], qport.ErrSkipRetry)
}

func TestQueueNotifier_EnqueueFailure(t *testing.T) {
	n := NewQueueNotifier(newLoopbackQueue())
	assert.Error(t, n.Notify(context.Background(), 1, port.NotificationKindChat))
}

func TestSinkNotifier_LogsThroughLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewSinkNotifier(NewLogSink(zap.New(core)))

	require.NoError(t, n.Notify(context.Background(), 7, port.NotificationKindChat))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ContextMap()["recipientId"])
	assert.Equal(t, "CHAT", entries[0].ContextMap()["kind"])
}
