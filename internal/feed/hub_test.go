package feed

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelayHub(t *testing.T, mr *miniredis.Miniredis) *Hub {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := NewHub(client)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run()
	}()
	t.Cleanup(func() {
		hub.Stop()
		<-done
		client.Close()
	})
	return hub
}

func TestHub_RelaysAcrossInstancesAndSkipsOwnEcho(t *testing.T) {
	mr := miniredis.RunT(t)
	hubA := startRelayHub(t, mr)
	hubB := startRelayHub(t, mr)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(redisPubSubChannel)[redisPubSubChannel] == 2
	}, 2*time.Second, 10*time.Millisecond, "both hubs subscribed")

	onA := newListener()
	hubA.listen(onA, "x")
	onB := newListener()
	hubB.listen(onB, "x")
	lastOnA := newListener()
	hubA.listen(lastOnA, "y")

	hubA.Publish("x")
	receive(t, onA.signal) // local delivery
	receive(t, onB.signal) // relayed

	// relay messages reach a subscriber in publish order, so once "y" from B
	// lands on A, A's own "x" echo has already been read and dropped
	hubB.Publish("y")
	receive(t, lastOnA.signal)

	select {
	case <-onA.signal:
		t.Fatal("hub re-delivered its own relay message")
	default:
	}
}

func TestHub_MalformedRelayMessageIsIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	hub := startRelayHub(t, mr)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(redisPubSubChannel)[redisPubSubChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	l := newListener()
	hub.listen(l, "x")

	mr.Publish(redisPubSubChannel, "{not json")
	mr.Publish(redisPubSubChannel, `{"origin":"other-instance","topics":["x"]}`)

	receive(t, l.signal)
	assert.Equal(t, 1, hub.listenerCount("x"))
}
