package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	topic   string
	payload string
}

func startBus(t *testing.T, ctx context.Context, client *redis.Client, node string) (*RedisBus, chan delivery) {
	t.Helper()
	got := make(chan delivery, 16)
	bus := NewRedisBus(client, node, nil)
	go func() {
		_ = bus.Run(ctx, func(topic string, payload []byte) int {
			got <- delivery{topic: topic, payload: string(payload)}
			return 1
		})
	}()
	select {
	case <-bus.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not subscribe")
	}
	return bus, got
}

func TestRedisBus_DeliversToPeersOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA, fromA := startBus(t, ctx, client, "node-a")
	_, fromB := startBus(t, ctx, client, "node-b")

	nodeA.Publish("room/9", []byte(`{"messageId":5}`))

	select {
	case d := <-fromB:
		assert.Equal(t, "room/9", d.topic)
		assert.JSONEq(t, `{"messageId":5}`, d.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not receive broadcast")
	}

	select {
	case d := <-fromA:
		t.Fatalf("node received its own echo: %v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBus_RouterIntegration(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	routerA, routerB := NewRouter(), NewRouter()
	defer routerA.Close()
	defer routerB.Close()

	busA := NewRedisBus(client, "a", nil)
	busB := NewRedisBus(client, "b", nil)
	routerA.SetBus(busA)
	routerB.SetBus(busB)
	go func() { _ = busA.Run(ctx, routerA.DeliverLocal) }()
	go func() { _ = busB.Run(ctx, routerB.DeliverLocal) }()
	<-busA.Ready()
	<-busB.Ready()

	sock := newFakeSocket()
	conn := NewConnection(2, sock)
	routerB.Attach(conn)
	require.True(t, routerB.Subscribe("room/1", conn))

	assert.Equal(t, 0, routerA.Broadcast("room/1", []byte(`{"messageId":1}`)))

	got := sock.waitFor(t, 1)
	assert.JSONEq(t, `{"messageId":1}`, string(got[0]))
}

func TestRedisBus_RetriesUntilRedisIsUp(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan delivery, 4)
	bus := NewRedisBus(client, "late", nil)
	bus.retryInitial = 10 * time.Millisecond
	done := make(chan error, 1)
	go func() {
		done <- bus.Run(ctx, func(topic string, payload []byte) int {
			got <- delivery{topic: topic, payload: string(payload)}
			return 1
		})
	}()

	select {
	case <-bus.Ready():
		t.Fatal("subscribed while redis was down")
	case err := <-done:
		t.Fatalf("run gave up: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, mr.Restart())
	select {
	case <-bus.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not subscribe after redis came back")
	}

	peer, _ := startBus(t, ctx, client, "peer")
	peer.Publish("room/2", []byte(`{"messageId":8}`))
	select {
	case d := <-got:
		assert.Equal(t, "room/2", d.topic)
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery after reconnect")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
