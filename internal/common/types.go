package common

import (
	"fmt"
	"strings"
)

type Side int

const (
	Buy Side = iota
	Sell
)

var sideNames = map[Side]string{
	Buy:  "BUY",
	Sell: "SELL",
}

func (s Side) String() string {
	if name, ok := sideNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	_, ok := sideNames[s]
	return ok
}

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSide, s)
}
