package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookAction string

const (
	// BookActionPartial is the initial wholesale snapshot of the book.
	BookActionPartial BookAction = "partial"
	// BookActionUpdate carries only the price levels that changed.
	BookActionUpdate BookAction = "update"
)

// BookMessage is one decoded frame of the orderbook channel.
type BookMessage struct {
	Market   string
	Action   BookAction
	Bids     []PriceLevel
	Asks     []PriceLevel
	Checksum uint32
	Time     time.Time
}

type Trade struct {
	ID          int64           `json:"id"`
	Market      string          `json:"-"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	Liquidation bool            `json:"liquidation"`
	Time        time.Time       `json:"time"`
}

type Ticker struct {
	Market  string
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	BidSize decimal.Decimal
	AskSize decimal.Decimal
	Last    decimal.Decimal
	Time    time.Time
}

type Liquidity string

const (
	LiquidityMaker Liquidity = "maker"
	LiquidityTaker Liquidity = "taker"
)

// Fill is a private execution notification. Immutable once decoded.
type Fill struct {
	ID            int64           `json:"id"`
	Market        string          `json:"market"`
	Future        string          `json:"future"`
	BaseCurrency  string          `json:"baseCurrency"`
	QuoteCurrency string          `json:"quoteCurrency"`
	Type          string          `json:"type"`
	Side          Side            `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	OrderID       int64           `json:"orderId"`
	TradeID       int64           `json:"tradeId"`
	Time          time.Time       `json:"time"`
	Fee           decimal.Decimal `json:"fee"`
	FeeRate       decimal.Decimal `json:"feeRate"`
	FeeCurrency   string          `json:"feeCurrency"`
	Liquidity     Liquidity       `json:"liquidity"`
}

// OrderUpdate is a private order state notification. Price and
// AvgFillPrice are null for market orders and unfilled orders.
type OrderUpdate struct {
	ID            int64               `json:"id"`
	ClientID      string              `json:"clientId"`
	Market        string              `json:"market"`
	Type          string              `json:"type"`
	Side          Side                `json:"side"`
	Price         decimal.NullDecimal `json:"price"`
	Size          decimal.Decimal     `json:"size"`
	Status        string              `json:"status"`
	FilledSize    decimal.Decimal     `json:"filledSize"`
	RemainingSize decimal.Decimal     `json:"remainingSize"`
	AvgFillPrice  decimal.NullDecimal `json:"avgFillPrice"`
	CreatedAt     time.Time           `json:"createdAt"`
	ReduceOnly    bool                `json:"reduceOnly"`
	IOC           bool                `json:"ioc"`
	PostOnly      bool                `json:"postOnly"`
}
