package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single resting level of an order book side.
// A zero size on the wire means "remove this price"; zero-size levels
// are never stored in a ladder.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ladder is one side of an order book, kept best-price-first:
// descending for bids, ascending for asks. Price uniqueness is an
// invariant; insertion order is irrelevant.
type ladder struct {
	descending bool
	levels     []PriceLevel
}

func newLadder(descending bool) ladder {
	return ladder{descending: descending}
}

// search returns the position of price in best-first order and whether
// a level with exactly that price is already present.
func (l *ladder) search(price decimal.Decimal) (int, bool) {
	i := sort.Search(len(l.levels), func(i int) bool {
		cmp := l.levels[i].Price.Cmp(price)
		if l.descending {
			return cmp <= 0
		}
		return cmp >= 0
	})
	if i < len(l.levels) && l.levels[i].Price.Equal(price) {
		return i, true
	}
	return i, false
}

func (l *ladder) set(price, size decimal.Decimal) {
	i, found := l.search(price)
	if found {
		l.levels[i].Size = size
		return
	}

	l.levels = append(l.levels, PriceLevel{})
	copy(l.levels[i+1:], l.levels[i:])
	l.levels[i] = PriceLevel{Price: price, Size: size}
}

// remove deletes the level at price. Removing an absent price is a no-op.
func (l *ladder) remove(price decimal.Decimal) {
	i, found := l.search(price)
	if !found {
		return
	}
	l.levels = append(l.levels[:i], l.levels[i+1:]...)
}

// replaceAll swaps in a wholesale new set of levels. The caller
// validates the input first (see OrderBook.ApplySnapshot), so a
// malformed snapshot never reaches the ladder.
func (l *ladder) replaceAll(levels []PriceLevel) {
	next := make([]PriceLevel, len(levels))
	copy(next, levels)

	descending := l.descending
	sort.Slice(next, func(i, j int) bool {
		if descending {
			return next[i].Price.Cmp(next[j].Price) > 0
		}
		return next[i].Price.Cmp(next[j].Price) < 0
	})

	l.levels = next
}

func validateLevels(levels []PriceLevel) error {
	seen := make(map[string]struct{}, len(levels))
	for _, level := range levels {
		if level.Size.Sign() <= 0 {
			return ErrMalformedMessage
		}
		key := level.Price.String()
		if _, ok := seen[key]; ok {
			return ErrMalformedMessage
		}
		seen[key] = struct{}{}
	}

	return nil
}

func (l *ladder) best() (PriceLevel, bool) {
	if len(l.levels) == 0 {
		return PriceLevel{}, false
	}
	return l.levels[0], true
}

func (l *ladder) len() int {
	return len(l.levels)
}

// top returns up to n best levels. The returned slice is a copy.
func (l *ladder) top(n int) []PriceLevel {
	if n > len(l.levels) {
		n = len(l.levels)
	}
	out := make([]PriceLevel, n)
	copy(out, l.levels[:n])
	return out
}

func (l *ladder) clear() {
	l.levels = nil
}
