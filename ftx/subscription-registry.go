package ftx

import (
	"sort"
	"sync"
)

type Channel string

const (
	ChannelOrderbook Channel = "orderbook"
	ChannelTrades    Channel = "trades"
	ChannelTicker    Channel = "ticker"
	ChannelFills     Channel = "fills"
	ChannelOrders    Channel = "orders"
)

// SubscriptionKey identifies one (channel, market) pair. Private
// channels carry no market.
type SubscriptionKey struct {
	Channel Channel
	Market  string
}

// SubscriptionRegistry is the desired-state ledger of what should be
// subscribed. It has no network side effects itself; the stream client
// replays it against the exchange on every (re)connect.
type SubscriptionRegistry struct {
	mu      sync.Mutex
	desired map[SubscriptionKey]struct{}
}

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		desired: make(map[SubscriptionKey]struct{}),
	}
}

// Subscribe adds the pair to the desired set. Idempotent.
func (r *SubscriptionRegistry) Subscribe(key SubscriptionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.desired[key] = struct{}{}
}

// Unsubscribe removes the pair from the desired set. Idempotent.
func (r *SubscriptionRegistry) Unsubscribe(key SubscriptionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.desired, key)
}

func (r *SubscriptionRegistry) Contains(key SubscriptionKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.desired[key]
	return ok
}

// DesiredState returns the current set in a stable order, so replays
// after reconnect are deterministic.
func (r *SubscriptionRegistry) DesiredState() []SubscriptionKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]SubscriptionKey, 0, len(r.desired))
	for key := range r.desired {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Channel != keys[j].Channel {
			return keys[i].Channel < keys[j].Channel
		}
		return keys[i].Market < keys[j].Market
	})

	return keys
}

func (r *SubscriptionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.desired)
}
