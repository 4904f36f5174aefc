package engine

import (
	"math/rand"
	"testing"

	. "matcher/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Random flow around a narrow price band so orders cross often.
func TestOrderBook_RandomFlowInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	book := NewOrderBook()

	for id := int64(1); id <= 5000; id++ {
		order := Order{
			ID:       id,
			Side:     Side(rng.Intn(2)),
			Price:    95 + rng.Int63n(11),
			Quantity: 1 + rng.Int63n(20),
		}
		bidsBefore, asksBefore := liquidity(book.Bids()), liquidity(book.Asks())

		trades, err := book.Process(order)
		require.NoError(t, err)

		var filled int64
		for _, trade := range trades {
			require.Positive(t, trade.Quantity)
			filled += trade.Quantity
			switch order.Side {
			case Buy:
				require.Equal(t, id, trade.Buyer)
				require.LessOrEqual(t, trade.Price, order.Price)
			case Sell:
				require.Equal(t, id, trade.Seller)
				require.GreaterOrEqual(t, trade.Price, order.Price)
			}
		}
		require.LessOrEqual(t, filled, order.Quantity)

		bids, asks := book.Bids(), book.Asks()
		rested := order.Quantity - filled
		// Quantity conservation: filled against the other side, rest on ours.
		switch order.Side {
		case Buy:
			require.Equal(t, asksBefore-filled, liquidity(asks))
			require.Equal(t, bidsBefore+rested, liquidity(bids))
		case Sell:
			require.Equal(t, bidsBefore-filled, liquidity(bids))
			require.Equal(t, asksBefore+rested, liquidity(asks))
		}
		require.Equal(t, liquidity(bids), book.Liquidity(Buy))
		require.Equal(t, liquidity(asks), book.Liquidity(Sell))
		require.Equal(t, count(bids), book.Orders(Buy))
		require.Equal(t, count(asks), book.Orders(Sell))

		// No cross.
		if len(bids) > 0 && len(asks) > 0 {
			require.Less(t, bids[0].Price, asks[0].Price)
		}
		// No empty levels, no dead orders, best first.
		for i, level := range bids {
			require.NotZero(t, level.Count)
			if i > 0 {
				require.Greater(t, bids[i-1].Price, level.Price)
			}
			for _, o := range level.Orders {
				require.Positive(t, o.Quantity)
			}
		}
		for i, level := range asks {
			require.NotZero(t, level.Count)
			if i > 0 {
				require.Less(t, asks[i-1].Price, level.Price)
			}
			for _, o := range level.Orders {
				require.Positive(t, o.Quantity)
			}
		}
	}
	assert.NotZero(t, book.bids.Len()+book.asks.Len())
}

func liquidity(levels []FlatPriceLevel) int64 {
	var total int64
	for _, level := range levels {
		total += level.Depth
	}
	return total
}

func count(levels []FlatPriceLevel) uint64 {
	var total uint64
	for _, level := range levels {
		total += uint64(level.Count)
	}
	return total
}
