package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/jpillora/backoff"

	promclient "github.com/spooky-finn/go-ftx-bridge/infrastructure/prometheus"
)

const (
	snapshotWaitTimeout = 15 * time.Second
	applyPollInterval   = 50 * time.Millisecond
)

// OrderbookMaintainer owns the book of one market. It buffers decoded
// frames in a FIFO so a slow apply never blocks the websocket read
// loop, applies them strictly in wire order, verifies the exchange
// checksum after every frame and forces a resubscribe whenever the book
// diverges.
type OrderbookMaintainer struct {
	OrderBook *OrderBook

	streamAPI BookStreamAPI

	mu    sync.Mutex
	queue deque.Deque[*BookMessage]
	sub   *Subscription[*BookMessage]

	retry    *backoff.Backoff
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	ChecksumErrCount int
}

func NewOrderbookMaintainer(streamAPI BookStreamAPI, symbol *MarketSymbol) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		OrderBook: NewOrderBook(symbol),
		streamAPI: streamAPI,
		retry: &backoff.Backoff{
			Min:    250 * time.Millisecond,
			Max:    10 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		done: make(chan struct{}),
	}
}

// Start subscribes to the depth stream and blocks until the first
// snapshot made the book ready.
func (m *OrderbookMaintainer) Start() error {
	if err := m.subscribe(); err != nil {
		return err
	}

	m.wg.Add(1)
	go m.applyLoop()

	deadline := time.Now().Add(snapshotWaitTimeout)
	for time.Now().Before(deadline) {
		if m.OrderBook.Ready() {
			promclient.OpenOrderBookGauge.Inc()
			return nil
		}

		select {
		case <-m.done:
			return errors.New("maintainer stopped before the first snapshot")
		case <-time.After(10 * time.Millisecond):
		}
	}

	m.Stop()
	return fmt.Errorf("no snapshot for %s within %s", m.OrderBook.Symbol, snapshotWaitTimeout)
}

func (m *OrderbookMaintainer) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		sub := m.sub
		m.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}

		if m.OrderBook.Ready() {
			promclient.OpenOrderBookGauge.Dec()
		}
	})
	m.wg.Wait()
}

// Invalidate marks the book stale and drops everything still queued
// from the old connection. Called by the transport on reconnect: the
// next frame the book accepts must be a fresh snapshot.
func (m *OrderbookMaintainer) Invalidate() {
	m.OrderBook.Invalidate()

	m.mu.Lock()
	m.queue.Clear()
	m.mu.Unlock()
}

func (m *OrderbookMaintainer) subscribe() error {
	sub, err := m.streamAPI.BookStream(m.OrderBook.Symbol)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sub = sub
	m.queue.Clear()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pump(sub)

	return nil
}

// pump moves frames from the subscription into the FIFO. It exits when
// the subscription's stream is closed by Unsubscribe.
func (m *OrderbookMaintainer) pump(sub *Subscription[*BookMessage]) {
	defer m.wg.Done()

	for msg := range sub.Stream {
		m.mu.Lock()
		m.queue.PushBack(msg)
		m.mu.Unlock()
	}
}

func (m *OrderbookMaintainer) applyLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		default:
		}

		m.mu.Lock()
		if m.queue.Len() == 0 {
			m.mu.Unlock()
			time.Sleep(applyPollInterval)
			continue
		}
		msg := m.queue.PopFront()
		m.mu.Unlock()

		err := m.process(msg)
		switch {
		case err == nil:
			m.retry.Reset()
		case errors.Is(err, ErrMalformedMessage):
			// Drop the frame, the stream continues.
			logger.Warnf("dropped malformed book frame for %s", m.OrderBook.Symbol)
		default:
			logger.Warnf("book desync on %s: %s", m.OrderBook.Symbol, err)
			m.resync()
		}
	}
}

func (m *OrderbookMaintainer) process(msg *BookMessage) error {
	switch msg.Action {
	case BookActionPartial:
		if err := m.OrderBook.ApplySnapshot(msg.Bids, msg.Asks); err != nil {
			return err
		}
	case BookActionUpdate:
		if err := m.OrderBook.ApplyUpdate(msg.Bids, msg.Asks); err != nil {
			return err
		}
	default:
		return ErrMalformedMessage
	}

	if !msg.Time.IsZero() {
		m.OrderBook.SetLastUpdateTime(msg.Time)
	}

	if !m.OrderBook.VerifyChecksum(msg.Checksum) {
		m.ChecksumErrCount++
		promclient.ChecksumMismatchCounter.Inc()
		return ErrChecksumMismatch
	}

	return nil
}

// resync throws the current subscription away and starts over from a
// fresh snapshot. Nothing queued under the old subscription survives.
func (m *OrderbookMaintainer) resync() {
	promclient.BookResyncCounter.Inc()
	m.Invalidate()

	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}

	for {
		select {
		case <-m.done:
			return
		case <-time.After(m.retry.Duration()):
		}

		if err := m.subscribe(); err != nil {
			logger.Errorf("resubscribe failed for %s: %s", m.OrderBook.Symbol, err)
			continue
		}

		return
	}
}
