package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

var two = decimal.NewFromInt(2)

// BookSnapshot is a read-only copy of the book state, levels rendered as
// [price, size] string pairs in best-first order.
type BookSnapshot struct {
	Market   string     `json:"market"`
	Revision uint64     `json:"revision"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

// OrderBook mirrors the exchange book of exactly one market. It is
// rebuilt wholesale from every snapshot and mutated in place by every
// incremental update after that.
//
// State machine: NotReady -> Ready on the first snapshot,
// Ready -> NotReady on Invalidate (lost continuity, forced resync).
// Updates are rejected while not ready.
//
// A single writer applies snapshots and updates; queries take a read
// lock so they always observe the ladders at one point in time.
type OrderBook struct {
	Symbol *MarketSymbol

	mu       sync.RWMutex
	bids     ladder
	asks     ladder
	ready    bool
	revision uint64
	lastTime time.Time
}

func NewOrderBook(symbol *MarketSymbol) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newLadder(true),
		asks:   newLadder(false),
	}
}

// ApplySnapshot replaces both ladders wholesale and marks the book
// ready. A malformed snapshot (duplicate price, size <= 0) is rejected
// before either ladder is touched, so the previous state survives.
func (ob *OrderBook) ApplySnapshot(bids []PriceLevel, asks []PriceLevel) error {
	if err := validateLevels(bids); err != nil {
		return err
	}
	if err := validateLevels(asks); err != nil {
		return err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids.replaceAll(bids)
	ob.asks.replaceAll(asks)
	ob.ready = true
	ob.revision++
	ob.lastTime = time.Now()

	return nil
}

// ApplyUpdate folds an incremental diff into the ladders: a zero size
// removes the price (no-op when absent), anything else inserts or
// replaces the level. Fails with ErrOutOfSequence while the book has no
// snapshot under it, and with ErrMalformedMessage on a negative size;
// in both cases nothing is applied.
func (ob *OrderBook) ApplyUpdate(bids []PriceLevel, asks []PriceLevel) error {
	for _, level := range bids {
		if level.Size.Sign() < 0 {
			return ErrMalformedMessage
		}
	}
	for _, level := range asks {
		if level.Size.Sign() < 0 {
			return ErrMalformedMessage
		}
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if !ob.ready {
		return ErrOutOfSequence
	}

	applyDiff(&ob.bids, bids)
	applyDiff(&ob.asks, asks)
	ob.revision++
	ob.lastTime = time.Now()

	return nil
}

func applyDiff(l *ladder, levels []PriceLevel) {
	for _, level := range levels {
		if level.Size.Sign() == 0 {
			l.remove(level.Price)
		} else {
			l.set(level.Price, level.Size)
		}
	}
}

// Invalidate drops the book back to NotReady, discarding the ladders.
// Called on disconnect and on detected desync; every update is rejected
// until a fresh snapshot arrives.
func (ob *OrderBook) Invalidate() {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids.clear()
	ob.asks.clear()
	ob.ready = false
}

func (ob *OrderBook) Ready() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.ready
}

// Revision is the freshness marker: it advances on every applied
// snapshot or update.
func (ob *OrderBook) Revision() uint64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.revision
}

// SetLastUpdateTime overrides the freshness timestamp with the exchange
// time of the message that produced the current state, when the message
// carried one.
func (ob *OrderBook) SetLastUpdateTime(t time.Time) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.lastTime = t
}

func (ob *OrderBook) LastUpdateTime() time.Time {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastTime
}

func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.best()
}

func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.best()
}

func (ob *OrderBook) BestBidAndAsk() (PriceLevel, PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid, ok := ob.bids.best()
	if !ok {
		return PriceLevel{}, PriceLevel{}, false
	}
	ask, ok := ob.asks.best()
	if !ok {
		return PriceLevel{}, PriceLevel{}, false
	}

	return bid, ask, true
}

func (ob *OrderBook) BidPrice() (decimal.Decimal, bool) {
	bid, ok := ob.BestBid()
	return bid.Price, ok
}

func (ob *OrderBook) AskPrice() (decimal.Decimal, bool) {
	ask, ok := ob.BestAsk()
	return ask.Price, ok
}

// MidPrice is the arithmetic mean of the best bid and best ask prices,
// not rounded to any price increment.
func (ob *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, ask, ok := ob.BestBidAndAsk()
	if !ok {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(two), true
}

// Quote estimates the average execution price for consuming size against
// the current ladder, walking from the best price outward. Returns false
// when the ladder holds less than the requested quantity.
func (ob *OrderBook) Quote(side Side, size decimal.Decimal) (decimal.Decimal, bool) {
	if size.Sign() <= 0 {
		return decimal.Decimal{}, false
	}

	ob.mu.RLock()
	defer ob.mu.RUnlock()

	var levels []PriceLevel
	if side == SideBuy {
		levels = ob.asks.levels
	} else {
		levels = ob.bids.levels
	}

	remaining := size
	notional := decimal.Zero

	for _, level := range levels {
		fill := decimal.Min(level.Size, remaining)
		notional = notional.Add(level.Price.Mul(fill))
		remaining = remaining.Sub(fill)

		if remaining.Sign() == 0 {
			return notional.Div(size), true
		}
	}

	// Ladder exhausted: not enough depth for the requested size.
	return decimal.Decimal{}, false
}

// Depth reports the number of levels on each side.
func (ob *OrderBook) Depth() (int, int) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.len(), ob.asks.len()
}

// TakeSnapshot copies up to limit levels per side (everything when
// limit <= 0).
func (ob *OrderBook) TakeSnapshot(limit int) *BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if limit <= 0 {
		limit = ob.bids.len() + ob.asks.len()
	}

	return &BookSnapshot{
		Market:   ob.Symbol.String(),
		Revision: ob.revision,
		Bids:     serializePriceLevels(ob.bids.top(limit)),
		Asks:     serializePriceLevels(ob.asks.top(limit)),
	}
}

func serializePriceLevels(levels []PriceLevel) [][]string {
	result := make([][]string, len(levels))
	for i, level := range levels {
		result[i] = []string{level.Price.String(), level.Size.String()}
	}
	return result
}
