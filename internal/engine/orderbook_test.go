package engine

import (
	"math"
	"testing"

	. "matcher/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireInvariantPanic runs fn and checks it panics with an error wrapping
// ErrInvariant.
func requireInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.ErrorIs(t, err, ErrInvariant)
	}()
	fn()
}

func TestOrderBook_CrossedBookPanics(t *testing.T) {
	book := NewOrderBook()
	_, err := book.Process(Order{ID: 1, Side: Buy, Price: 100, Quantity: 1})
	require.NoError(t, err)

	// Slip an ask under the best bid behind the book's back.
	book.asks.Set(&PriceLevel{
		priceLevel: 90,
		orders:     []*Order{{ID: 2, Side: Sell, Price: 90, Quantity: 1, TotalQuantity: 1}},
	})

	order := Order{ID: 3, Side: Buy, Price: 50, Quantity: 1}
	assert.PanicsWithError(t, "order book invariant violated: book crossed with bid 100 >= ask 90", func() {
		_, _ = book.Process(order)
	})
	requireInvariantPanic(t, func() { _, _ = book.Process(order) })

	// The write lock is released on the way out.
	bid, ok := book.BestBid()
	assert.True(t, ok)
	assert.Equal(t, int64(100), bid)
}

func TestOrderBook_UnreachableDispatch(t *testing.T) {
	book := NewOrderBook()
	order := Order{ID: 1, Side: Side(7), Price: 10, Quantity: 1}

	assert.PanicsWithError(t, "order book invariant violated: no matching path for order 1 on side Side(7)", func() {
		book.dispatch(order)
	})
	requireInvariantPanic(t, func() { book.dispatch(order) })
	assert.Zero(t, book.bids.Len()+book.asks.Len())

	// Through Process the same order is only ever a validation error.
	_, err := book.Process(order)
	assert.ErrorIs(t, err, ErrUnknownSide)
}

func TestOrderBook_LiquidityOverflow(t *testing.T) {
	book := NewOrderBook()
	const half = int64(1) << 62

	_, err := book.Process(Order{ID: 1, Side: Buy, Price: 10, Quantity: half})
	require.NoError(t, err)

	_, err = book.Process(Order{ID: 2, Side: Buy, Price: 10, Quantity: half})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.ErrorIs(t, err, ErrLiquidityOverflow)
	assert.Equal(t, half, book.Liquidity(Buy))
	assert.Equal(t, uint64(1), book.Orders(Buy))

	// Exactly up to the limit still fits.
	_, err = book.Process(Order{ID: 3, Side: Buy, Price: 9, Quantity: half - 1})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), book.Liquidity(Buy))
	for _, level := range book.Bids() {
		assert.Positive(t, level.Depth)
	}

	// The other side has its own headroom.
	_, err = book.Process(Order{ID: 4, Side: Sell, Price: 20, Quantity: half})
	require.NoError(t, err)
	assert.Equal(t, half, book.Liquidity(Sell))
}
