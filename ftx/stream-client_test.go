package ftx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-ftx-bridge/config"
)

func TestStreamClient_UnsubscribeWhileRoutingFullBuffer(t *testing.T) {
	client := NewStreamClient(&config.Config{})

	sub, err := client.Subscribe(ChannelTrades, "BTC/USD")
	require.NoError(t, err)

	frame := []byte(`{"channel": "trades", "market": "BTC/USD", "type": "update", "data": []}`)

	// Fill the subscriber buffer without draining it.
	for i := 0; i < rawStreamBuffer; i++ {
		client.route(frame)
	}

	// The next frame blocks on the full buffer; unsubscribing underneath
	// it must release the routing goroutine, not panic it.
	routed := make(chan struct{})
	go func() {
		defer close(routed)
		client.route(frame)
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Unsubscribe()

	select {
	case <-routed:
	case <-time.After(2 * time.Second):
		t.Fatal("routing goroutine still blocked after unsubscribe")
	}

	// Buffered frames stay readable, then the stream closes.
	drained := 0
	for range sub.Stream {
		drained++
	}
	assert.Equal(t, rawStreamBuffer, drained, "Frames buffered before unsubscribe should be delivered")

	// Frames for a gone topic are dropped.
	client.route(frame)
}

func TestStreamClient_SubscribeRefCounting(t *testing.T) {
	client := NewStreamClient(&config.Config{})

	first, err := client.Subscribe(ChannelOrderbook, "BTC/USD")
	require.NoError(t, err)
	second, err := client.Subscribe(ChannelOrderbook, "BTC/USD")
	require.NoError(t, err)

	key := SubscriptionKey{Channel: ChannelOrderbook, Market: "BTC/USD"}
	assert.Equal(t, 1, client.registry.Count(), "One desired subscription for two subscribers")

	first.Unsubscribe()
	assert.True(t, client.registry.Contains(key), "Topic should stay desired while a subscriber remains")

	second.Unsubscribe()
	assert.False(t, client.registry.Contains(key), "Last unsubscribe should drop the topic")

	_, open := <-second.Stream
	assert.False(t, open, "Stream should be closed after the last unsubscribe")
}
