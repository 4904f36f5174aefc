package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"

	. "matcher/internal/common"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

// ErrInvariant marks a broken book invariant. It is only ever raised through
// a panic: continuing would corrupt trade generation.
var ErrInvariant = errors.New("order book invariant violated")

// ErrLiquidityOverflow rejects an order whose quantity could push its side's
// resting total past int64.
var ErrLiquidityOverflow = errors.New("side liquidity would overflow")

type PriceLevels = btree.BTreeG[*PriceLevel]

// FlatPriceLevel is a copy of a price level, safe to hold after the book moves on.
type FlatPriceLevel struct {
	Price  int64
	Orders []Order
	Depth  int64
	Count  int
}

type OrderBook struct {
	// Guards everything below. Process holds the write side for a whole call.
	mu sync.RWMutex

	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd.
	bids *PriceLevels
	asks *PriceLevels

	// Some book keeping
	nBuyOrders   uint64 // Track the number of bids in the book.
	nSellOrders  uint64 // Track the number of asks in the book.
	buyQuantity  int64  // Track the bid-side liquidity of the book.
	sellQuantity int64  // Track the ask-side liquidity of the book.
}

func NewOrderBook() *OrderBook {
	// The book carries its own lock.
	opts := btree.Options{NoLocks: true}
	// Sorted greatest first.
	bids := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.priceLevel > b.priceLevel
	}, opts)
	// Sorted least first.
	asks := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.priceLevel < b.priceLevel
	}, opts)
	return &OrderBook{
		bids: bids,
		asks: asks,
	}
}

// Process runs one incoming limit order through the book. The order either
// (fully or partially):
// 1. Executes immediately against the opposite side
// 2. Rests in the book at its own limit price
// Trades are returned oldest match first. An invalid order is rejected before
// the book is touched.
func (book *OrderBook) Process(order Order) ([]Trade, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	order.TotalQuantity = order.Quantity

	book.mu.Lock()
	defer book.mu.Unlock()

	// The remainder can be at most the full quantity, and depth and liquidity
	// are summed from the same resting orders.
	if order.Quantity > math.MaxInt64-book.liquidity(order.Side) {
		return nil, fmt.Errorf("%w %d: %w", ErrInvalidOrder, order.ID, ErrLiquidityOverflow)
	}

	defer book.checkNoCross()
	return book.dispatch(order), nil
}

// dispatch picks one of the four matching paths. Callers hold the write lock
// and have validated the order.
func (book *OrderBook) dispatch(order Order) []Trade {
	best, ok := book.bestOpposingPrice(order.Side)
	switch order.Side {
	case Buy:
		// No ask behaves as +inf.
		if ok && order.Price >= best {
			return book.buyCrosses(order)
		}
		book.buyRests(order)
		return nil
	case Sell:
		// No bid behaves as -inf.
		if ok && order.Price <= best {
			return book.sellCrosses(order)
		}
		book.sellRests(order)
		return nil
	}
	panic(fmt.Errorf("%w: no matching path for order %d on side %v", ErrInvariant, order.ID, order.Side))
}

func (book *OrderBook) buyCrosses(order Order) []Trade {
	log.Debug().Int64("id", order.ID).Int64("price", order.Price).Int64("quantity", order.Quantity).Msg("buy crosses the book")
	trades, remaining := book.executeBuy(order)
	if remaining > 0 {
		order.Quantity = remaining
		book.buyRests(order)
	}
	return trades
}

func (book *OrderBook) sellCrosses(order Order) []Trade {
	log.Debug().Int64("id", order.ID).Int64("price", order.Price).Int64("quantity", order.Quantity).Msg("sell crosses the book")
	trades, remaining := book.executeSell(order)
	if remaining > 0 {
		order.Quantity = remaining
		book.sellRests(order)
	}
	return trades
}

func (book *OrderBook) buyRests(order Order) {
	book.rest(book.bids, order)
	book.nBuyOrders++
	book.buyQuantity += order.Quantity
}

func (book *OrderBook) sellRests(order Order) {
	book.rest(book.asks, order)
	book.nSellOrders++
	book.sellQuantity += order.Quantity
}

// rest appends the order at the tail of its own limit price level, creating
// the level when needed.
func (book *OrderBook) rest(levels *PriceLevels, order Order) {
	if order.Quantity <= 0 {
		panic(fmt.Errorf("%w: resting order %d with quantity %d", ErrInvariant, order.ID, order.Quantity))
	}
	log.Debug().Int64("id", order.ID).Stringer("side", order.Side).Int64("price", order.Price).Int64("quantity", order.Quantity).Msg("order resting")

	// Levels comparator only accounts for price levels, so we create a dummy price
	// level for the search.
	level, ok := levels.GetMut(&PriceLevel{priceLevel: order.Price})
	if !ok {
		level = newPriceLevel(order.Price)
		levels.Set(level)
	}
	level.Add(&order)
}

// executeSell consumes bid levels priced at or above the seller's limit, best
// (highest) bid first.
func (book *OrderBook) executeSell(order Order) ([]Trade, int64) {
	trades, remaining, lifted := book.sweep(book.bids, order, func(price int64) bool {
		return price >= order.Price
	})
	book.nBuyOrders -= lifted
	book.buyQuantity -= order.Quantity - remaining
	return trades, remaining
}

// executeBuy consumes ask levels priced at or below the buyer's limit, best
// (lowest) ask first.
func (book *OrderBook) executeBuy(order Order) ([]Trade, int64) {
	trades, remaining, lifted := book.sweep(book.asks, order, func(price int64) bool {
		return price <= order.Price
	})
	book.nSellOrders -= lifted
	book.sellQuantity -= order.Quantity - remaining
	return trades, remaining
}

// sweep walks levels best first while they are eligible and the order still
// has quantity, pruning every level it empties. It reports the trades, the
// unfilled quantity and the number of resting orders lifted off the book.
func (book *OrderBook) sweep(levels *PriceLevels, order Order, eligible func(price int64) bool) ([]Trade, int64, uint64) {
	var executed []Trade
	var lifted uint64
	remaining := order.Quantity
	for remaining > 0 {
		// Min here accounts for bids and asks being in inverse order, based on their
		// comparison method.
		level, ok := levels.MinMut()
		if !ok || !eligible(level.priceLevel) {
			break
		}

		before := level.Len()
		var trades []Trade
		trades, remaining = level.Consume(order.Side, order.ID, level.priceLevel, remaining)
		executed = append(executed, trades...)
		lifted += uint64(before - level.Len())

		if level.Empty() {
			levels.Delete(level)
		} else if remaining > 0 {
			panic(fmt.Errorf("%w: level %d kept liquidity with %d unfilled", ErrInvariant, level.priceLevel, remaining))
		}
	}
	return executed, remaining, lifted
}

// checkNoCross enforces max bid < min ask after every transition.
func (book *OrderBook) checkNoCross() {
	bid, bidOk := book.bestBid()
	ask, askOk := book.bestAsk()
	if bidOk && askOk && bid >= ask {
		panic(fmt.Errorf("%w: book crossed with bid %d >= ask %d", ErrInvariant, bid, ask))
	}
}

// BestOpposingPrice is the price an incoming order on side has to cross: the
// lowest ask for a buy, the highest bid for a sell. ok is false when that side
// is empty, which nothing can cross.
func (book *OrderBook) BestOpposingPrice(side Side) (int64, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.bestOpposingPrice(side)
}

func (book *OrderBook) bestOpposingPrice(side Side) (int64, bool) {
	switch side {
	case Buy:
		return book.bestAsk()
	case Sell:
		return book.bestBid()
	}
	return 0, false
}

func (book *OrderBook) BestBid() (int64, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.bestBid()
}

func (book *OrderBook) BestAsk() (int64, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.bestAsk()
}

// Spread is best ask minus best bid, only defined when both sides have liquidity.
func (book *OrderBook) Spread() (int64, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()
	bid, bidOk := book.bestBid()
	ask, askOk := book.bestAsk()
	if !bidOk || !askOk {
		return 0, false
	}
	return ask - bid, true
}

func (book *OrderBook) bestBid() (int64, bool) {
	level, ok := book.bids.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

func (book *OrderBook) bestAsk() (int64, bool) {
	level, ok := book.asks.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

// Bids lists bid levels from the highest price down.
func (book *OrderBook) Bids() []FlatPriceLevel {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return FlattenLevels(book.bids.Items())
}

// Asks lists ask levels from the lowest price up.
func (book *OrderBook) Asks() []FlatPriceLevel {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return FlattenLevels(book.asks.Items())
}

// Orders is the number of resting orders on side.
func (book *OrderBook) Orders(side Side) uint64 {
	book.mu.RLock()
	defer book.mu.RUnlock()
	if side == Buy {
		return book.nBuyOrders
	}
	return book.nSellOrders
}

// Liquidity is the total resting quantity on side.
func (book *OrderBook) Liquidity(side Side) int64 {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.liquidity(side)
}

func (book *OrderBook) liquidity(side Side) int64 {
	if side == Buy {
		return book.buyQuantity
	}
	return book.sellQuantity
}

func FlattenLevels(levels []*PriceLevel) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, len(levels))
	for i, level := range levels {
		flat[i] = level.flatten()
	}
	return flat
}
