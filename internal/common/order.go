package common

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder    = errors.New("invalid order")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrUnknownSide     = errors.New("unknown side")
)

type Order struct {
	ID            int64 // Owner/sequence identity
	Side          Side  // Order side
	Price         int64 // Limiting price, in ticks
	Quantity      int64 // Remaining quantity
	TotalQuantity int64 // Total volume requested, stamped on arrival
}

// Validate checks the order can enter the book. Errors wrap ErrInvalidOrder.
func (order Order) Validate() error {
	var errs []error
	if !order.Side.Valid() {
		errs = append(errs, fmt.Errorf("%w: %v", ErrUnknownSide, order.Side))
	}
	if order.Price <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidPrice, order.Price))
	}
	if order.Quantity <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidQuantity, order.Quantity))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %d: %w", ErrInvalidOrder, order.ID, errors.Join(errs...))
}

// Filled is true once nothing is left to match.
func (order Order) Filled() bool {
	return order.Quantity == 0
}

func (order Order) String() string {
	return fmt.Sprintf(
		"Order[id=%d %v #%d/%d at $%d]",
		order.ID,
		order.Side,
		order.Quantity,
		order.TotalQuantity,
		order.Price,
	)
}
