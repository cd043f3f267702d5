package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	busPattern    = "room/*"
	busBufferSize = 1024

	busRetryInitial = 500 * time.Millisecond
	busRetryMax     = 30 * time.Second
)

var errSubscriptionClosed = errors.New("bus: subscription closed")

type envelope struct {
	Node    string          `json:"node"`
	Payload json.RawMessage `json:"payload"`
}

type outbound struct {
	topic   string
	payload []byte
}

// RedisBus relays room broadcasts between API nodes over Redis pub/sub.
// Messages published by this node are tagged with its id and dropped when they echo back.
type RedisBus struct {
	client *redis.Client
	nodeID string
	logger *zap.Logger

	out       chan outbound
	ready     chan struct{}
	readyOnce sync.Once

	retryInitial time.Duration
}

func NewRedisBus(client *redis.Client, nodeID string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client: client,
		nodeID: nodeID,
		logger: logger.Named("bus"),
		out:    make(chan outbound, busBufferSize),
		ready:  make(chan struct{}),

		retryInitial: busRetryInitial,
	}
}

var _ Bus = (*RedisBus)(nil)

// Publish queues payload for peers. Order is kept per node; when the queue is full the
// payload is dropped and only local subscribers see it.
func (b *RedisBus) Publish(topic string, payload []byte) {
	select {
	case b.out <- outbound{topic: topic, payload: payload}:
	default:
		b.logger.Warn("bus queue full, dropping", zap.String("topic", topic))
	}
}

// Ready is closed once the subscription is confirmed by Redis.
func (b *RedisBus) Ready() <-chan struct{} {
	return b.ready
}

// Run subscribes to every room channel and hands peer traffic to deliver. It also drains the
// publish queue. A failed or dropped subscription is retried with exponential backoff, so Run
// blocks until ctx is canceled.
func (b *RedisBus) Run(ctx context.Context, deliver func(topic string, payload []byte) int) error {
	go b.publishLoop(ctx)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.retryInitial
	policy.MaxInterval = busRetryMax
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := b.subscribe(ctx, deliver, policy.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		b.logger.Warn("bus: subscription failed, retrying", zap.Duration("in", wait), zap.Error(err))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// subscribe serves one subscription until it breaks. onReady runs once Redis confirms it.
func (b *RedisBus) subscribe(ctx context.Context, deliver func(topic string, payload []byte) int, onReady func()) error {
	sub := b.client.PSubscribe(ctx, busPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	onReady()
	b.readyOnce.Do(func() { close(b.ready) })

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errSubscriptionClosed
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("bus: malformed envelope", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if env.Node == b.nodeID {
				continue
			}
			deliver(msg.Channel, env.Payload)
		}
	}
}

func (b *RedisBus) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-b.out:
			data, err := json.Marshal(envelope{Node: b.nodeID, Payload: m.payload})
			if err != nil {
				b.logger.Warn("bus: encode envelope", zap.String("topic", m.topic), zap.Error(err))
				continue
			}
			if err := b.client.Publish(ctx, m.topic, data).Err(); err != nil {
				b.logger.Warn("bus: publish", zap.String("topic", m.topic), zap.Error(err))
			}
		}
	}
}
