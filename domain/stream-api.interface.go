package domain

// BookStreamAPI is the slice of the transport the maintainer depends
// on: a stream of decoded orderbook frames for one market, snapshot
// first, strictly in wire order.
type BookStreamAPI interface {
	BookStream(symbol *MarketSymbol) (*Subscription[*BookMessage], error)
}

type CreateOrderBookResult struct {
	OrderBook *OrderBook
	Err       error
}
