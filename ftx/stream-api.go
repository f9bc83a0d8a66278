package ftx

import (
	"errors"
	"sync"

	"github.com/spooky-finn/go-ftx-bridge/domain"
	promclient "github.com/spooky-finn/go-ftx-bridge/infrastructure/prometheus"
)

var ErrSocketNotAuthenticated = errors.New("api credentials required for private channels")

const decodedStreamBuffer = 64

// StreamAPI is the typed surface over the raw stream client: decoded
// per-market streams, maintained order books, and the private fill and
// order streams fanned out by the router.
type StreamAPI struct {
	client *StreamClient
	router *domain.PrivateStreamRouter

	mu          sync.Mutex
	maintainers map[string]*domain.OrderbookMaintainer

	privateOnce sync.Once
	privateErr  error
}

func NewStreamAPI(client *StreamClient) *StreamAPI {
	api := &StreamAPI{
		client:      client,
		router:      domain.NewPrivateStreamRouter(),
		maintainers: make(map[string]*domain.OrderbookMaintainer),
	}

	client.OnReconnect(api.invalidateBooks)

	return api
}

// invalidateBooks runs on every reconnect. Continuity is lost, so no
// book may trust further diffs until its fresh snapshot arrived.
func (s *StreamAPI) invalidateBooks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, maintainer := range s.maintainers {
		maintainer.Invalidate()
	}
}

// BookStream implements domain.BookStreamAPI: raw orderbook frames
// decoded into book messages, wire order preserved.
func (s *StreamAPI) BookStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.BookMessage], error) {
	raw, err := s.client.Subscribe(ChannelOrderbook, symbol.String())
	if err != nil {
		return nil, err
	}

	stream := make(chan *domain.BookMessage, decodedStreamBuffer)

	go func() {
		defer close(stream)

		for msg := range raw.Stream {
			event := DecodeMessage(msg)
			switch event.Kind {
			case EventBookSnapshot, EventBookUpdate:
				stream <- event.Book
			case EventMalformed:
				promclient.MalformedFrameCounter.Inc()
				logger.Warnf("malformed orderbook frame for %s: %s", symbol, event.Err)
			default:
				logger.Debugf("unexpected event kind %d on orderbook topic %s", event.Kind, symbol)
			}
		}
	}()

	return &domain.Subscription[*domain.BookMessage]{
		Stream:      stream,
		Topic:       raw.Topic,
		Unsubscribe: raw.Unsubscribe,
	}, nil
}

// OrderBook returns the maintained book for the market, spinning up a
// maintainer on first use. The call blocks until the book saw its first
// snapshot.
func (s *StreamAPI) OrderBook(symbol *domain.MarketSymbol) *domain.CreateOrderBookResult {
	s.mu.Lock()
	if maintainer, ok := s.maintainers[symbol.String()]; ok {
		s.mu.Unlock()
		return &domain.CreateOrderBookResult{OrderBook: maintainer.OrderBook}
	}
	s.mu.Unlock()

	maintainer := domain.NewOrderbookMaintainer(s, symbol)
	if err := maintainer.Start(); err != nil {
		return &domain.CreateOrderBookResult{Err: err}
	}

	s.mu.Lock()
	if existing, ok := s.maintainers[symbol.String()]; ok {
		// Lost the race against a concurrent caller.
		s.mu.Unlock()
		maintainer.Stop()
		return &domain.CreateOrderBookResult{OrderBook: existing.OrderBook}
	}
	s.maintainers[symbol.String()] = maintainer
	s.mu.Unlock()

	return &domain.CreateOrderBookResult{OrderBook: maintainer.OrderBook}
}

// CloseOrderBook stops maintaining the market's book.
func (s *StreamAPI) CloseOrderBook(symbol *domain.MarketSymbol) {
	s.mu.Lock()
	maintainer, ok := s.maintainers[symbol.String()]
	delete(s.maintainers, symbol.String())
	s.mu.Unlock()

	if !ok {
		return
	}

	maintainer.Stop()
}

// TradesStream emits public trades one at a time, in arrival order.
func (s *StreamAPI) TradesStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.Trade], error) {
	raw, err := s.client.Subscribe(ChannelTrades, symbol.String())
	if err != nil {
		return nil, err
	}

	stream := make(chan *domain.Trade, decodedStreamBuffer)

	go func() {
		defer close(stream)

		for msg := range raw.Stream {
			event := DecodeMessage(msg)
			switch event.Kind {
			case EventTrades:
				for _, trade := range event.Trades {
					stream <- trade
				}
			case EventMalformed:
				promclient.MalformedFrameCounter.Inc()
				logger.Warnf("malformed trades frame for %s: %s", symbol, event.Err)
			}
		}
	}()

	return &domain.Subscription[*domain.Trade]{
		Stream:      stream,
		Topic:       raw.Topic,
		Unsubscribe: raw.Unsubscribe,
	}, nil
}

// TickerStream emits best bid/offer updates for the market.
func (s *StreamAPI) TickerStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.Ticker], error) {
	raw, err := s.client.Subscribe(ChannelTicker, symbol.String())
	if err != nil {
		return nil, err
	}

	stream := make(chan *domain.Ticker, decodedStreamBuffer)

	go func() {
		defer close(stream)

		for msg := range raw.Stream {
			event := DecodeMessage(msg)
			switch event.Kind {
			case EventTicker:
				stream <- event.Ticker
			case EventMalformed:
				promclient.MalformedFrameCounter.Inc()
				logger.Warnf("malformed ticker frame for %s: %s", symbol, event.Err)
			}
		}
	}()

	return &domain.Subscription[*domain.Ticker]{
		Stream:      stream,
		Topic:       raw.Topic,
		Unsubscribe: raw.Unsubscribe,
	}, nil
}

// Fills streams the account's fills for one market, or all markets when
// symbol is nil. Requires api credentials.
func (s *StreamAPI) Fills(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.Fill], error) {
	if err := s.ensurePrivateStreams(); err != nil {
		return nil, err
	}
	return s.router.SubscribeFills(symbol), nil
}

// Orders streams the account's order updates for one market, or all
// markets when symbol is nil. Requires api credentials.
func (s *StreamAPI) Orders(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.OrderUpdate], error) {
	if err := s.ensurePrivateStreams(); err != nil {
		return nil, err
	}
	return s.router.SubscribeOrders(symbol), nil
}

func (s *StreamAPI) ensurePrivateStreams() error {
	if s.client.conf.Key == "" {
		return ErrSocketNotAuthenticated
	}

	s.privateOnce.Do(func() {
		fills, err := s.client.Subscribe(ChannelFills, "")
		if err != nil {
			s.privateErr = err
			return
		}
		orders, err := s.client.Subscribe(ChannelOrders, "")
		if err != nil {
			s.privateErr = err
			return
		}

		go s.pumpPrivate(fills.Stream)
		go s.pumpPrivate(orders.Stream)
	})

	return s.privateErr
}

// pumpPrivate decodes private frames and hands them to the router in
// arrival order.
func (s *StreamAPI) pumpPrivate(stream chan []byte) {
	for msg := range stream {
		event := DecodeMessage(msg)
		switch event.Kind {
		case EventFill:
			s.router.DispatchFill(event.Fill)
		case EventOrderUpdate:
			s.router.DispatchOrder(event.Order)
		case EventMalformed:
			promclient.MalformedFrameCounter.Inc()
			logger.Warnf("malformed private frame: %s", event.Err)
		}
	}
}
