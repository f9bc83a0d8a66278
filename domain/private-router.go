package domain

import "sync"

const privateStreamBuffer = 64

type privateListener[T any] struct {
	market string // empty means all markets
	ch     chan T

	sendMu sync.Mutex
	closed bool
	done   chan struct{}
}

func newPrivateListener[T any](market string) *privateListener[T] {
	return &privateListener[T]{
		market: market,
		ch:     make(chan T, privateStreamBuffer),
		done:   make(chan struct{}),
	}
}

func (l *privateListener[T]) matches(market string) bool {
	return l.market == "" || l.market == market
}

// publish delivers one event, blocking while the listener's buffer is
// full. It returns as soon as the listener shuts down, so a stalled
// consumer can always be released by its own Unsubscribe.
func (l *privateListener[T]) publish(v T) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if l.closed {
		return
	}

	select {
	case l.ch <- v:
	case <-l.done:
	}
}

// shutdown closes the stream. Closing done first unblocks an in-flight
// publish; taking sendMu after that guarantees no send races the close.
func (l *privateListener[T]) shutdown() {
	close(l.done)

	l.sendMu.Lock()
	l.closed = true
	close(l.ch)
	l.sendMu.Unlock()
}

// PrivateStreamRouter fans decoded fill and order events out to
// registered listeners, either per market or global. Stateless beyond
// the routing table: delivery order matches arrival order and nothing
// is buffered beyond the subscriber channels.
type PrivateStreamRouter struct {
	mu        sync.RWMutex
	nextID    int
	fillSubs  map[int]*privateListener[*Fill]
	orderSubs map[int]*privateListener[*OrderUpdate]
}

func NewPrivateStreamRouter() *PrivateStreamRouter {
	return &PrivateStreamRouter{
		fillSubs:  make(map[int]*privateListener[*Fill]),
		orderSubs: make(map[int]*privateListener[*OrderUpdate]),
	}
}

// SubscribeFills registers a listener for fills of one market, or of
// all markets when symbol is nil.
func (r *PrivateStreamRouter) SubscribeFills(symbol *MarketSymbol) *Subscription[*Fill] {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	listener := newPrivateListener[*Fill](marketKey(symbol))
	r.fillSubs[id] = listener

	return &Subscription[*Fill]{
		Stream: listener.ch,
		Topic:  "fills:" + listener.market,
		Unsubscribe: func() {
			r.mu.Lock()
			_, ok := r.fillSubs[id]
			delete(r.fillSubs, id)
			r.mu.Unlock()

			if ok {
				listener.shutdown()
			}
		},
	}
}

// SubscribeOrders registers a listener for order updates of one market,
// or of all markets when symbol is nil.
func (r *PrivateStreamRouter) SubscribeOrders(symbol *MarketSymbol) *Subscription[*OrderUpdate] {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	listener := newPrivateListener[*OrderUpdate](marketKey(symbol))
	r.orderSubs[id] = listener

	return &Subscription[*OrderUpdate]{
		Stream: listener.ch,
		Topic:  "orders:" + listener.market,
		Unsubscribe: func() {
			r.mu.Lock()
			_, ok := r.orderSubs[id]
			delete(r.orderSubs, id)
			r.mu.Unlock()

			if ok {
				listener.shutdown()
			}
		},
	}
}

// DispatchFill delivers a fill to every matching listener. The routing
// table is snapshotted under the lock and delivery happens outside it,
// so a stalled listener never wedges the router.
func (r *PrivateStreamRouter) DispatchFill(fill *Fill) {
	r.mu.RLock()
	matching := make([]*privateListener[*Fill], 0, len(r.fillSubs))
	for _, listener := range r.fillSubs {
		if listener.matches(fill.Market) {
			matching = append(matching, listener)
		}
	}
	r.mu.RUnlock()

	for _, listener := range matching {
		listener.publish(fill)
	}
}

// DispatchOrder delivers an order update to every matching listener.
func (r *PrivateStreamRouter) DispatchOrder(order *OrderUpdate) {
	r.mu.RLock()
	matching := make([]*privateListener[*OrderUpdate], 0, len(r.orderSubs))
	for _, listener := range r.orderSubs {
		if listener.matches(order.Market) {
			matching = append(matching, listener)
		}
	}
	r.mu.RUnlock()

	for _, listener := range matching {
		listener.publish(order)
	}
}

func marketKey(symbol *MarketSymbol) string {
	if symbol == nil {
		return ""
	}
	return symbol.String()
}
