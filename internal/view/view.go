package view

import (
	"fmt"
	"io"
	"strings"

	"matcher/internal/common"
	"matcher/internal/engine"
)

const defaultSpaces = 10

// Book is the read-only surface the renderer needs.
type Book interface {
	Bids() []engine.FlatPriceLevel
	Asks() []engine.FlatPriceLevel
}

// BookView draws both sides of a book next to each other, best prices on top.
type BookView struct {
	w      io.Writer
	spaces int
}

func New(w io.Writer) *BookView {
	return &BookView{w: w, spaces: defaultSpaces}
}

func (v *BookView) Print(book Book) error {
	bids := formatLevels(book.Bids())
	asks := formatLevels(book.Asks())
	return v.outline(bids, asks)
}

// PrintTrades writes one trade per line.
func (v *BookView) PrintTrades(trades []common.Trade) error {
	for _, t := range trades {
		if _, err := fmt.Fprintln(v.w, t); err != nil {
			return err
		}
	}
	return nil
}

func (v *BookView) outline(bids, asks []string) error {
	const bidHeader, askHeader = "BID (Buyers)", "ASK (Sellers)"
	lengthBids := widest(bids, bidHeader) + v.spaces
	lengthAsks := widest(asks, askHeader) + v.spaces

	for len(bids) < len(asks) {
		bids = append(bids, "")
	}
	for len(asks) < len(bids) {
		asks = append(asks, "")
	}

	var sb strings.Builder
	drawLine := func(sep string) {
		sb.WriteString(strings.Repeat("_", lengthBids))
		sb.WriteString("_")
		sb.WriteString(sep)
		sb.WriteString(strings.Repeat("_", lengthAsks))
		sb.WriteString("\n")
	}

	drawLine("_")
	fmt.Fprintf(&sb, "%-*s | %s\n", lengthBids, bidHeader, askHeader)
	drawLine("|")
	for i := range bids {
		fmt.Fprintf(&sb, "%-*s | %s\n", lengthBids, bids[i], asks[i])
	}
	drawLine("|")

	_, err := io.WriteString(v.w, sb.String())
	return err
}

func formatLevels(levels []engine.FlatPriceLevel) []string {
	lines := make([]string, len(levels))
	for i, level := range levels {
		lines[i] = FormatLevel(level)
	}
	return lines
}

func FormatLevel(level engine.FlatPriceLevel) string {
	return fmt.Sprintf("Level %d: Total %d / #%d order", level.Price, level.Depth, level.Count)
}

// widest sizes a column from its levels, falling back to the header for an
// empty side.
func widest(lines []string, header string) int {
	if len(lines) == 0 {
		return len(header)
	}
	var n int
	for _, l := range lines {
		n = max(n, len(l))
	}
	return n
}
