package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "markets")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "markets", []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte("hello"), msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishOtherChannelNotDelivered(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "markets")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "stakes", []byte("x")))

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeClosedOnCancel(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "markets")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestPublishConcurrentWithUnsubscribe(t *testing.T) {
	bus := NewSignalBus()

	// Churn subscribers while publishing. Closing a channel that a
	// publisher is still sending on would panic the publisher goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = bus.Publish(context.Background(), "markets", []byte("tick"))
		}
	}()

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := bus.Subscribe(ctx, "markets")
		require.NoError(t, err)
		go func() {
			for range ch {
			}
		}()
		cancel()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not finish")
	}
}

func TestStreamAppendAndRead(t *testing.T) {
	bus := NewSignalBus()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.StreamAppend(ctx, "stream:settlements", []byte(fmt.Sprintf("rec-%d", i))))
	}

	msgs, err := bus.StreamRead(ctx, "stream:settlements", "0", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []byte("rec-0"), msgs[0].Payload)

	// Resume from the last seen id.
	msgs, err = bus.StreamRead(ctx, "stream:settlements", msgs[2].ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("rec-3"), msgs[0].Payload)
	assert.Equal(t, []byte("rec-4"), msgs[1].Payload)
}

func TestStreamReadDollarCursor(t *testing.T) {
	bus := NewSignalBus()
	ctx := context.Background()

	require.NoError(t, bus.StreamAppend(ctx, "s", []byte("a")))

	msgs, err := bus.StreamRead(ctx, "s", "$", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStreamReadEmptyStream(t *testing.T) {
	bus := NewSignalBus()
	msgs, err := bus.StreamRead(context.Background(), "missing", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
