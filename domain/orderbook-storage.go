package domain

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "domain")

// OrderBookStorage is the runtime registry of live books, keyed by
// market. Components that need to know which books currently exist read
// it; the use case layer adds and removes entries.
type OrderBookStorage struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		books: make(map[string]*OrderBook),
	}
}

func (o *OrderBookStorage) Add(symbol *MarketSymbol, orderBook *OrderBook) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.books[symbol.String()] = orderBook
}

func (o *OrderBookStorage) Get(symbol *MarketSymbol) (*OrderBook, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	book, ok := o.books[symbol.String()]
	if !ok {
		return nil, ErrOrderBookNotFound
	}

	return book, nil
}

func (o *OrderBookStorage) Remove(symbol *MarketSymbol) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.books, symbol.String())
}

func (o *OrderBookStorage) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.books)
}

func (o *OrderBookStorage) Markets() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	markets := make([]string, 0, len(o.books))
	for market := range o.books {
		markets = append(markets, market)
	}

	return markets
}
