package engine

import (
	"fmt"

	. "matcher/internal/common"
)

// PriceLevel is a FIFO queue of resting orders sharing one price. Orders are
// push-back'd, so the head is always the oldest.
type PriceLevel struct {
	priceLevel int64
	orders     []*Order
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{priceLevel: price}
}

func (level *PriceLevel) Price() int64 { return level.priceLevel }

// Len is the number of resting orders.
func (level *PriceLevel) Len() int { return len(level.orders) }

func (level *PriceLevel) Empty() bool { return len(level.orders) == 0 }

// Add appends to the tail of the queue. The caller guarantees the order
// belongs to this level.
func (level *PriceLevel) Add(order *Order) {
	level.orders = append(level.orders, order)
}

// Depth sums the resting quantity on the level.
func (level *PriceLevel) Depth() int64 {
	var depth int64
	for _, order := range level.orders {
		depth += order.Quantity
	}
	return depth
}

// Consume matches an incoming taker against the level, oldest order first.
// It returns the trades in match order and whatever taker quantity is left
// once either the level or the taker is exhausted. The level does not prune
// itself; the owning book checks Empty afterwards.
func (level *PriceLevel) Consume(takerSide Side, takerID, price, quantity int64) ([]Trade, int64) {
	if quantity <= 0 {
		panic(fmt.Errorf("%w: consume of %d at level %d", ErrInvariant, quantity, level.priceLevel))
	}
	if level.Empty() {
		panic(fmt.Errorf("%w: consume from empty level %d", ErrInvariant, level.priceLevel))
	}

	var trades []Trade
	var i int
	for i < len(level.orders) && quantity > 0 {
		head := level.orders[i]
		if head.Quantity <= 0 {
			panic(fmt.Errorf("%w: resting order %d has quantity %d", ErrInvariant, head.ID, head.Quantity))
		}

		if quantity < head.Quantity {
			// Head stays at the front with whatever is left.
			trades = append(trades, newTrade(takerSide, takerID, head.ID, price, quantity))
			head.Quantity -= quantity
			quantity = 0
			break
		}

		trades = append(trades, newTrade(takerSide, takerID, head.ID, price, head.Quantity))
		quantity -= head.Quantity
		head.Quantity = 0
		level.orders[i] = nil
		i++
	}
	level.orders = level.orders[i:]

	return trades, quantity
}

func (level *PriceLevel) flatten() FlatPriceLevel {
	flat := FlatPriceLevel{
		Price:  level.priceLevel,
		Orders: make([]Order, len(level.orders)),
		Count:  len(level.orders),
	}
	for i, order := range level.orders {
		flat.Orders[i] = *order
		flat.Depth += order.Quantity
	}
	return flat
}

// newTrade attributes buyer and seller from the taker's side.
func newTrade(takerSide Side, takerID, makerID, price, quantity int64) Trade {
	trade := Trade{Price: price, Quantity: quantity}
	switch takerSide {
	case Buy:
		trade.Buyer, trade.Seller = takerID, makerID
	case Sell:
		trade.Buyer, trade.Seller = makerID, takerID
	default:
		panic(fmt.Errorf("%w: trade for unknown side %v", ErrInvariant, takerSide))
	}
	return trade
}
