package ftx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spooky-finn/go-ftx-bridge/domain"
)

type EventKind int

const (
	EventUnknown EventKind = iota
	EventBookSnapshot
	EventBookUpdate
	EventTrades
	EventTicker
	EventFill
	EventOrderUpdate
	EventPong
	EventSubscribed
	EventUnsubscribed
	EventInfo
	EventError
	EventMalformed
)

// Event is the closed set of things an inbound frame can decode into.
// Exactly one payload field is set, matching Kind. EventUnknown covers
// channel/type combinations this client does not know yet; it is
// surfaced but never fatal. EventMalformed carries the raw payload for
// diagnostics and never stops the stream.
type Event struct {
	Kind    EventKind
	Channel string
	Market  string

	Book   *domain.BookMessage
	Trades []*domain.Trade
	Ticker *domain.Ticker
	Fill   *domain.Fill
	Order  *domain.OrderUpdate

	Code int
	Msg  string

	Raw []byte
	Err error
}

type envelope struct {
	Channel string          `json:"channel"`
	Market  string          `json:"market"`
	Type    string          `json:"type"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// DecodeMessage parses one raw frame into exactly one tagged event.
func DecodeMessage(raw []byte) *Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return malformed(raw, err)
	}

	switch env.Type {
	case "pong":
		return &Event{Kind: EventPong}
	case "subscribed":
		return &Event{Kind: EventSubscribed, Channel: env.Channel, Market: env.Market}
	case "unsubscribed":
		return &Event{Kind: EventUnsubscribed, Channel: env.Channel, Market: env.Market}
	case "info":
		return &Event{Kind: EventInfo, Code: env.Code, Msg: env.Msg}
	case "error":
		return &Event{Kind: EventError, Code: env.Code, Msg: env.Msg}
	case "partial", "update":
	default:
		return &Event{Kind: EventUnknown, Channel: env.Channel, Market: env.Market, Raw: raw}
	}

	switch Channel(env.Channel) {
	case ChannelOrderbook:
		return decodeBook(&env, raw)
	case ChannelTrades:
		return decodeTrades(&env, raw)
	case ChannelTicker:
		return decodeTicker(&env, raw)
	case ChannelFills:
		return decodeFill(&env, raw)
	case ChannelOrders:
		return decodeOrder(&env, raw)
	default:
		return &Event{Kind: EventUnknown, Channel: env.Channel, Market: env.Market, Raw: raw}
	}
}

type bookData struct {
	Action   string           `json:"action"`
	Bids     [][2]json.Number `json:"bids"`
	Asks     [][2]json.Number `json:"asks"`
	Checksum uint32           `json:"checksum"`
	Time     json.Number      `json:"time"`
}

func decodeBook(env *envelope, raw []byte) *Event {
	if env.Market == "" {
		return malformed(raw, fmt.Errorf("orderbook frame without market"))
	}

	var data bookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return malformed(raw, err)
	}

	action := domain.BookAction(data.Action)
	kind := EventBookUpdate
	switch action {
	case domain.BookActionPartial:
		kind = EventBookSnapshot
	case domain.BookActionUpdate:
	default:
		return malformed(raw, fmt.Errorf("unknown orderbook action %q", data.Action))
	}

	bids, err := parsePriceLevels(data.Bids)
	if err != nil {
		return malformed(raw, err)
	}
	asks, err := parsePriceLevels(data.Asks)
	if err != nil {
		return malformed(raw, err)
	}

	return &Event{
		Kind:    kind,
		Channel: env.Channel,
		Market:  env.Market,
		Book: &domain.BookMessage{
			Market:   env.Market,
			Action:   action,
			Bids:     bids,
			Asks:     asks,
			Checksum: data.Checksum,
			Time:     unixTime(data.Time),
		},
	}
}

// parsePriceLevels keeps the wire digits intact by going through
// json.Number: the checksum serialization must render exactly what the
// exchange sent.
func parsePriceLevels(levels [][2]json.Number) ([]domain.PriceLevel, error) {
	result := make([]domain.PriceLevel, len(levels))
	for i, level := range levels {
		price, err := decimal.NewFromString(level[0].String())
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", level[0], err)
		}
		size, err := decimal.NewFromString(level[1].String())
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", level[1], err)
		}

		result[i] = domain.PriceLevel{Price: price, Size: size}
	}

	return result, nil
}

func decodeTrades(env *envelope, raw []byte) *Event {
	if env.Market == "" {
		return malformed(raw, fmt.Errorf("trades frame without market"))
	}

	var trades []*domain.Trade
	if err := json.Unmarshal(env.Data, &trades); err != nil {
		return malformed(raw, err)
	}
	for _, trade := range trades {
		trade.Market = env.Market
	}

	return &Event{Kind: EventTrades, Channel: env.Channel, Market: env.Market, Trades: trades}
}

type tickerData struct {
	Bid     decimal.NullDecimal `json:"bid"`
	Ask     decimal.NullDecimal `json:"ask"`
	BidSize decimal.NullDecimal `json:"bidSize"`
	AskSize decimal.NullDecimal `json:"askSize"`
	Last    decimal.NullDecimal `json:"last"`
	Time    json.Number         `json:"time"`
}

func decodeTicker(env *envelope, raw []byte) *Event {
	if env.Market == "" {
		return malformed(raw, fmt.Errorf("ticker frame without market"))
	}

	var data tickerData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return malformed(raw, err)
	}

	return &Event{
		Kind:    EventTicker,
		Channel: env.Channel,
		Market:  env.Market,
		Ticker: &domain.Ticker{
			Market:  env.Market,
			Bid:     data.Bid.Decimal,
			Ask:     data.Ask.Decimal,
			BidSize: data.BidSize.Decimal,
			AskSize: data.AskSize.Decimal,
			Last:    data.Last.Decimal,
			Time:    unixTime(data.Time),
		},
	}
}

func decodeFill(env *envelope, raw []byte) *Event {
	var fill domain.Fill
	if err := json.Unmarshal(env.Data, &fill); err != nil {
		return malformed(raw, err)
	}
	if fill.ID == 0 || fill.Market == "" {
		return malformed(raw, fmt.Errorf("fill frame missing required fields"))
	}

	return &Event{Kind: EventFill, Channel: env.Channel, Market: fill.Market, Fill: &fill}
}

func decodeOrder(env *envelope, raw []byte) *Event {
	var order domain.OrderUpdate
	if err := json.Unmarshal(env.Data, &order); err != nil {
		return malformed(raw, err)
	}
	if order.ID == 0 || order.Market == "" {
		return malformed(raw, fmt.Errorf("order frame missing required fields"))
	}

	return &Event{Kind: EventOrderUpdate, Channel: env.Channel, Market: order.Market, Order: &order}
}

// unixTime converts the exchange's fractional-seconds timestamp
// (e.g. 1621740952.5079553). A missing or unreadable value maps to the
// zero time; the field is informational only.
func unixTime(n json.Number) time.Time {
	f, err := n.Float64()
	if err != nil {
		return time.Time{}
	}

	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func malformed(raw []byte, err error) *Event {
	return &Event{
		Kind: EventMalformed,
		Raw:  raw,
		Err:  fmt.Errorf("%w: %s", domain.ErrMalformedMessage, err),
	}
}
