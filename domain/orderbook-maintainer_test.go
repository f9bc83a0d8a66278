package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBookStream fakes the transport: every subscription gets a
// fresh channel, and onSubscribe seeds it (usually with a snapshot,
// like the exchange does).
type scriptedBookStream struct {
	mu          sync.Mutex
	subCount    int
	current     *Subscription[*BookMessage]
	onSubscribe func(sub *Subscription[*BookMessage], nth int)
}

func (f *scriptedBookStream) BookStream(symbol *MarketSymbol) (*Subscription[*BookMessage], error) {
	f.mu.Lock()
	f.subCount++
	nth := f.subCount

	ch := make(chan *BookMessage, 16)
	var once sync.Once
	sub := &Subscription[*BookMessage]{
		Stream: ch,
		Topic:  "orderbook:" + symbol.String(),
		Unsubscribe: func() {
			once.Do(func() { close(ch) })
		},
	}
	f.current = sub
	cb := f.onSubscribe
	f.mu.Unlock()

	if cb != nil {
		cb(sub, nth)
	}

	return sub, nil
}

func (f *scriptedBookStream) subs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCount
}

func (f *scriptedBookStream) push(msg *BookMessage) {
	f.mu.Lock()
	sub := f.current
	f.mu.Unlock()
	sub.Stream <- msg
}

func TestOrderbookMaintainer_SnapshotThenUpdate(t *testing.T) {
	symbol := testSymbol(t)

	snapshotBids := []PriceLevel{lvl("100", "1"), lvl("99", "2")}
	snapshotAsks := []PriceLevel{lvl("101", "1")}
	updateBids := []PriceLevel{lvl("100.5", "3")}

	// Reference book yields the checksums the exchange would publish.
	ref := NewOrderBook(symbol)
	require.NoError(t, ref.ApplySnapshot(snapshotBids, snapshotAsks))
	snapshotMsg := &BookMessage{Action: BookActionPartial, Bids: snapshotBids, Asks: snapshotAsks, Checksum: ref.Checksum()}

	require.NoError(t, ref.ApplyUpdate(updateBids, nil))
	updateMsg := &BookMessage{Action: BookActionUpdate, Bids: updateBids, Checksum: ref.Checksum()}

	fake := &scriptedBookStream{
		onSubscribe: func(sub *Subscription[*BookMessage], nth int) {
			sub.Stream <- snapshotMsg
		},
	}

	m := NewOrderbookMaintainer(fake, symbol)
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.True(t, m.OrderBook.Ready(), "Book should be ready after the snapshot")

	fake.push(updateMsg)

	assert.Eventually(t, func() bool {
		return m.OrderBook.Revision() == 2
	}, 2*time.Second, 10*time.Millisecond, "Update should be applied")

	bid, ok := m.OrderBook.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("100.5")))
	assert.Equal(t, 1, fake.subs(), "No resync should have happened")
}

func TestOrderbookMaintainer_ResyncOnChecksumMismatch(t *testing.T) {
	symbol := testSymbol(t)

	snapshotBids := []PriceLevel{lvl("100", "1")}
	snapshotAsks := []PriceLevel{lvl("101", "1")}

	ref := NewOrderBook(symbol)
	require.NoError(t, ref.ApplySnapshot(snapshotBids, snapshotAsks))
	checksum := ref.Checksum()

	fake := &scriptedBookStream{
		onSubscribe: func(sub *Subscription[*BookMessage], nth int) {
			sub.Stream <- &BookMessage{Action: BookActionPartial, Bids: snapshotBids, Asks: snapshotAsks, Checksum: checksum}
		},
	}

	m := NewOrderbookMaintainer(fake, symbol)
	require.NoError(t, m.Start())

	// A diff whose checksum does not match the local book forces a
	// fresh subscription and a new snapshot.
	fake.push(&BookMessage{
		Action:   BookActionUpdate,
		Bids:     []PriceLevel{lvl("100", "2")},
		Checksum: checksum + 1,
	})

	assert.Eventually(t, func() bool {
		return fake.subs() == 2 && m.OrderBook.Ready()
	}, 5*time.Second, 10*time.Millisecond, "Mismatch should trigger a resubscribe and recover")

	m.Stop()
	assert.Equal(t, 1, m.ChecksumErrCount, "One mismatch should have been counted")
}

func TestOrderbookMaintainer_InvalidateRequiresFreshSnapshot(t *testing.T) {
	symbol := testSymbol(t)

	snapshotBids := []PriceLevel{lvl("100", "1")}
	snapshotAsks := []PriceLevel{lvl("101", "1")}

	ref := NewOrderBook(symbol)
	require.NoError(t, ref.ApplySnapshot(snapshotBids, snapshotAsks))
	checksum := ref.Checksum()

	fake := &scriptedBookStream{
		onSubscribe: func(sub *Subscription[*BookMessage], nth int) {
			sub.Stream <- &BookMessage{Action: BookActionPartial, Bids: snapshotBids, Asks: snapshotAsks, Checksum: checksum}
		},
	}

	m := NewOrderbookMaintainer(fake, symbol)
	require.NoError(t, m.Start())

	// Transport-level loss of continuity: the book is stale and stale
	// diffs must not be trusted again.
	m.Invalidate()
	assert.False(t, m.OrderBook.Ready())

	fake.push(&BookMessage{
		Action:   BookActionUpdate,
		Bids:     []PriceLevel{lvl("100", "5")},
		Checksum: checksum,
	})

	// The out-of-sequence diff forces a resubscribe; the fresh snapshot
	// restores the book.
	assert.Eventually(t, func() bool {
		return m.OrderBook.Ready()
	}, 5*time.Second, 10*time.Millisecond)

	bid, ok := m.OrderBook.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("100")), "Stale diff must not survive the resync")
	assert.True(t, bid.Size.Equal(decimal.RequireFromString("1")), "Stale diff must not survive the resync")

	m.Stop()
}
