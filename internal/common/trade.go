package common

import "fmt"

// Trade accounts for the two parties who matched. Price is always the
// resting order's level price.
type Trade struct {
	Buyer    int64
	Seller   int64
	Price    int64
	Quantity int64
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade[seller=%d => buyer=%d] #%d at $%d",
		t.Seller,
		t.Buyer,
		t.Quantity,
		t.Price,
	)
}
