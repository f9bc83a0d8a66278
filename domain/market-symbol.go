package domain

import (
	"fmt"
	"strings"
)

// MarketSymbol identifies a single market on the exchange.
// Spot markets are quoted as BASE/QUOTE ("BTC/USD"), derivatives keep
// their native name ("BTC-PERP", "BTC-0626").
type MarketSymbol struct {
	name string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	if strings.EqualFold(base, quote) {
		return nil, fmt.Errorf("base and quote must be different")
	}

	return &MarketSymbol{
		name: strings.ToUpper(base) + "/" + strings.ToUpper(quote),
	}, nil
}

func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	if s == "" {
		return nil, fmt.Errorf("market name must not be empty")
	}

	if strings.Contains(s, "/") {
		split := strings.Split(s, "/")
		if len(split) != 2 || split[0] == "" || split[1] == "" {
			return nil, fmt.Errorf("invalid market name %q", s)
		}
		return NewMarketSymbol(split[0], split[1])
	}

	// Derivative markets carry no quote currency in the name.
	return &MarketSymbol{name: strings.ToUpper(s)}, nil
}

// IsDerivative reports whether the market is a future or a perpetual
// rather than a spot pair.
func (ms *MarketSymbol) IsDerivative() bool {
	return !strings.Contains(ms.name, "/")
}

func (ms *MarketSymbol) String() string {
	return ms.name
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.name == other.name
}
