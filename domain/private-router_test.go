package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFill(market string, id int64) *Fill {
	return &Fill{
		ID:      id,
		Market:  market,
		Side:    SideBuy,
		Price:   decimal.NewFromInt(100),
		Size:    decimal.NewFromInt(1),
		OrderID: id * 10,
		TradeID: id * 100,
		Time:    time.Now(),
	}
}

func TestPrivateStreamRouter_RoutesByMarket(t *testing.T) {
	router := NewPrivateStreamRouter()

	btc, err := NewMarketSymbolFromString("BTC/USD")
	require.NoError(t, err)

	btcSub := router.SubscribeFills(btc)
	allSub := router.SubscribeFills(nil)

	router.DispatchFill(testFill("BTC/USD", 1))
	router.DispatchFill(testFill("ETH/USD", 2))

	// The market listener only sees its own market.
	fill := <-btcSub.Stream
	assert.Equal(t, int64(1), fill.ID)
	select {
	case unexpected := <-btcSub.Stream:
		t.Fatalf("unexpected fill %d on the BTC listener", unexpected.ID)
	default:
	}

	// The global listener sees everything, in arrival order.
	first := <-allSub.Stream
	second := <-allSub.Stream
	assert.Equal(t, int64(1), first.ID, "Delivery order should match arrival order")
	assert.Equal(t, int64(2), second.ID, "Delivery order should match arrival order")
}

func TestPrivateStreamRouter_OrderUpdates(t *testing.T) {
	router := NewPrivateStreamRouter()

	sub := router.SubscribeOrders(nil)

	router.DispatchOrder(&OrderUpdate{ID: 7, Market: "BTC-PERP", Status: "new"})
	router.DispatchOrder(&OrderUpdate{ID: 7, Market: "BTC-PERP", Status: "closed"})

	first := <-sub.Stream
	second := <-sub.Stream
	assert.Equal(t, "new", first.Status)
	assert.Equal(t, "closed", second.Status)
}

func TestPrivateStreamRouter_Unsubscribe(t *testing.T) {
	router := NewPrivateStreamRouter()

	sub := router.SubscribeFills(nil)
	sub.Unsubscribe()
	// Idempotent.
	sub.Unsubscribe()

	_, open := <-sub.Stream
	assert.False(t, open, "Unsubscribe should close the stream")

	// Dispatch after unsubscribe must not panic.
	router.DispatchFill(testFill("BTC/USD", 3))
}

func TestPrivateStreamRouter_StalledListener(t *testing.T) {
	router := NewPrivateStreamRouter()

	// This listener's consumer never drains, so its buffer fills up.
	stuck := router.SubscribeFills(nil)
	other := router.SubscribeFills(nil)

	go func() {
		for range other.Stream {
		}
	}()

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i := 0; i <= privateStreamBuffer; i++ {
			router.DispatchFill(testFill("BTC/USD", int64(i+1)))
		}
	}()

	select {
	case <-dispatched:
		t.Fatal("dispatch should be blocked on the stalled listener")
	case <-time.After(50 * time.Millisecond):
	}

	// Unsubscribing the stalled listener must not deadlock against the
	// blocked dispatch, and must release it.
	stuck.Unsubscribe()

	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch still blocked after the stalled listener unsubscribed")
	}
}
