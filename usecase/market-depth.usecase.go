package usecase

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-ftx-bridge/domain"
)

var logger = logrus.WithField("component", "usecase")

// BookProvider is what the use case needs from the transport: a way to
// get (and start maintaining) the book of a market.
type BookProvider interface {
	OrderBook(symbol *domain.MarketSymbol) *domain.CreateOrderBookResult
}

// MarketDepthUseCase is the caller-facing read-only surface over
// maintained order books.
type MarketDepthUseCase struct {
	api     BookProvider
	storage *domain.OrderBookStorage
}

func NewMarketDepthUseCase(api BookProvider) *MarketDepthUseCase {
	return &MarketDepthUseCase{
		api:     api,
		storage: domain.NewOrderBookStorage(),
	}
}

func (u *MarketDepthUseCase) book(symbol *domain.MarketSymbol) (*domain.OrderBook, error) {
	book, err := u.storage.Get(symbol)
	if err == nil {
		return book, nil
	}

	result := u.api.OrderBook(symbol)
	if result.Err != nil {
		return nil, result.Err
	}

	u.storage.Add(symbol, result.OrderBook)
	logger.Infof("order book for %s added to the runtime storage", symbol)

	return result.OrderBook, nil
}

func (u *MarketDepthUseCase) GetOrderBookSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.BookSnapshot, error) {
	book, err := u.book(symbol)
	if err != nil {
		return nil, err
	}

	return book.TakeSnapshot(limit), nil
}

func (u *MarketDepthUseCase) GetBestBidAndAsk(symbol *domain.MarketSymbol) (domain.PriceLevel, domain.PriceLevel, error) {
	book, err := u.book(symbol)
	if err != nil {
		return domain.PriceLevel{}, domain.PriceLevel{}, err
	}

	bid, ask, ok := book.BestBidAndAsk()
	if !ok {
		return domain.PriceLevel{}, domain.PriceLevel{}, domain.ErrEmptySide
	}

	return bid, ask, nil
}

func (u *MarketDepthUseCase) GetMidPrice(symbol *domain.MarketSymbol) (decimal.Decimal, error) {
	book, err := u.book(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}

	mid, ok := book.MidPrice()
	if !ok {
		return decimal.Decimal{}, domain.ErrEmptySide
	}

	return mid, nil
}

// GetQuote estimates the average execution price for consuming size
// against the market's current ladder.
func (u *MarketDepthUseCase) GetQuote(symbol *domain.MarketSymbol, side domain.Side, size decimal.Decimal) (decimal.Decimal, error) {
	book, err := u.book(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}

	quote, ok := book.Quote(side, size)
	if !ok {
		return decimal.Decimal{}, domain.ErrInsufficientDepth
	}

	return quote, nil
}
