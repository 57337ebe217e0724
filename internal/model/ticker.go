package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// TickerRecord is one normalized 24h ticker for a trading pair.
type TickerRecord struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"` // Percent, signed
	Volume24h float64 `json:"volume24h"` // Quote asset units
}

// MarketSnapshot holds every tracked ticker ordered by Volume24h, highest first.
type MarketSnapshot []TickerRecord

// Top returns the first n records, or all of them when n <= 0 or exceeds the length.
func (s MarketSnapshot) Top(n int) MarketSnapshot {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

// Find looks up a record by symbol, case-insensitively.
func (s MarketSnapshot) Find(symbol string) (TickerRecord, bool) {
	symbol = strings.ToUpper(symbol)
	for _, r := range s {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return TickerRecord{}, false
}

// ByVolume, Gainers and Losers return sorted copies; ties keep their current order.
func (s MarketSnapshot) ByVolume() MarketSnapshot {
	return s.sortedCopy(func(a, b TickerRecord) int { return cmp.Compare(b.Volume24h, a.Volume24h) })
}

func (s MarketSnapshot) Gainers() MarketSnapshot {
	return s.sortedCopy(func(a, b TickerRecord) int { return cmp.Compare(b.Change24h, a.Change24h) })
}

func (s MarketSnapshot) Losers() MarketSnapshot {
	return s.sortedCopy(func(a, b TickerRecord) int { return cmp.Compare(a.Change24h, b.Change24h) })
}

func (s MarketSnapshot) sortedCopy(compare func(a, b TickerRecord) int) MarketSnapshot {
	out := slices.Clone(s)
	if out == nil {
		out = MarketSnapshot{}
	}
	slices.SortStableFunc(out, compare)
	return out
}

func (s MarketSnapshot) Symbols() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = r.Symbol
	}
	return out
}

// ConnectionState reports which acquisition mode currently feeds the store.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	ConnectedStreaming
	ConnectedPolling
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ConnectedStreaming:
		return "connected_streaming"
	case ConnectedPolling:
		return "connected_polling"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Live reports whether some upstream is currently delivering data.
func (s ConnectionState) Live() bool {
	return s == ConnectedStreaming || s == ConnectedPolling
}
