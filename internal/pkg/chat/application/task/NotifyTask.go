package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	qport "go-mentorchat/internal/infrastructure/queue/port"
	"go-mentorchat/internal/pkg/chat/application/port"
)

// NotifyTaskType is the queue task name for a chat notification.
const NotifyTaskType = "chat:notify"

// NotifyQueue is the asynq queue notification tasks are enqueued on.
const NotifyQueue = "notify"

const notifyMaxRetry = 5

// NotifyTaskPayload is the JSON payload transported via the queue.
type NotifyTaskPayload struct {
	RecipientID int64     `json:"recipientId"`
	Kind        string    `json:"kind"`
	RaisedAt    time.Time `json:"raisedAt"`
}

// QueueNotifier enqueues notifications for the worker; delivery happens out of band.
type QueueNotifier struct {
	client qport.Client
}

func NewQueueNotifier(client qport.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

var _ port.Notifier = (*QueueNotifier)(nil)

func (n *QueueNotifier) Notify(ctx context.Context, recipientID int64, kind string) error {
	payload, err := json.Marshal(NotifyTaskPayload{RecipientID: recipientID, Kind: kind, RaisedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = n.client.Enqueue(ctx, qport.Task{Type: NotifyTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:    NotifyQueue,
		MaxRetry: notifyMaxRetry,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", NotifyTaskType, err)
	}
	return nil
}

// NotificationSink hands a notification to whatever delivers it to the user.
type NotificationSink interface {
	Deliver(ctx context.Context, n NotifyTaskPayload) error
}

// LogSink writes notifications to the log. It is the default sink.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Deliver(ctx context.Context, n NotifyTaskPayload) error {
	s.logger.Info("notification",
		zap.Int64("recipientId", n.RecipientID),
		zap.String("kind", n.Kind),
		zap.Time("raisedAt", n.RaisedAt))
	return nil
}

// SinkNotifier delivers straight to a sink, for deployments without a queue.
type SinkNotifier struct {
	sink NotificationSink
}

func NewSinkNotifier(sink NotificationSink) *SinkNotifier {
	return &SinkNotifier{sink: sink}
}

var _ port.Notifier = (*SinkNotifier)(nil)

func (n *SinkNotifier) Notify(ctx context.Context, recipientID int64, kind string) error {
	return n.sink.Deliver(ctx, NotifyTaskPayload{RecipientID: recipientID, Kind: kind, RaisedAt: time.Now().UTC()})
}

// RegisterNotifyTask binds the notification handler to the provided server.
func RegisterNotifyTask(srv qport.Server, sink NotificationSink) {
	srv.Register(NotifyTaskType, func(ctx context.Context, t qport.Task) error {
		var p NotifyTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: retrying will not help
			return fmt.Errorf("%s: decode payload: %v: %w", NotifyTaskType, err, qport.ErrSkipRetry)
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return sink.Deliver(ctx, p)
	})
}
