package market

import (
	"slices"

	"crypto-market-feed/internal/model"
)

// fallbackRecords is served when the REST snapshot cannot be fetched, so
// consumers always have something to render.
var fallbackRecords = model.MarketSnapshot{
	{Symbol: "BTCUSDT", Price: 64250.50, Change24h: -0.85, Volume24h: 28500000000},
	{Symbol: "ETHUSDT", Price: 3420.75, Change24h: 2.34, Volume24h: 15200000000},
	{Symbol: "SOLUSDT", Price: 145.80, Change24h: -1.23, Volume24h: 3800000000},
	{Symbol: "BNBUSDT", Price: 612.30, Change24h: 1.45, Volume24h: 2100000000},
	{Symbol: "XRPUSDT", Price: 0.5234, Change24h: 3.67, Volume24h: 1900000000},
	{Symbol: "DOGEUSDT", Price: 0.0823, Change24h: 5.21, Volume24h: 1200000000},
	{Symbol: "ADAUSDT", Price: 0.4521, Change24h: -0.54, Volume24h: 890000000},
	{Symbol: "AVAXUSDT", Price: 35.67, Change24h: 4.23, Volume24h: 780000000},
	{Symbol: "MATICUSDT", Price: 0.7845, Change24h: 2.11, Volume24h: 670000000},
	{Symbol: "DOTUSDT", Price: 6.234, Change24h: -2.34, Volume24h: 540000000},
}

// FallbackSnapshot returns a fresh copy of the built-in sample dataset,
// ordered by volume like any other snapshot.
func FallbackSnapshot() model.MarketSnapshot {
	return slices.Clone(fallbackRecords)
}
