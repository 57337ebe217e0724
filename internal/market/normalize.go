package market

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"crypto-market-feed/internal/model"
)

var ErrMalformedBatch = errors.New("malformed ticker batch")

// Result describes one normalization pass.
type Result struct {
	Snapshot model.MarketSnapshot
	Received int // Entries in the upstream batch
	Dropped  int // Entries that failed to parse or had no volume
}

type Normalizer struct {
	QuoteAsset string
}

func NewNormalizer(quoteAsset string) Normalizer {
	return Normalizer{QuoteAsset: strings.ToUpper(quoteAsset)}
}

// FromStream normalizes a raw `!ticker@arr` message. An error means the whole
// message was unusable and the caller should keep its previous snapshot.
func (n Normalizer) FromStream(data []byte) (Result, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if entries == nil {
		return Result{}, fmt.Errorf("%w: null payload", ErrMalformedBatch)
	}

	b := n.newBuilder(len(entries))
	for _, raw := range entries {
		var ev binance.WsMarketStatEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			b.drop()
			continue
		}
		b.add(ev.Symbol, ev.LastPrice, ev.PriceChangePercent, ev.QuoteVolume)
	}
	return b.result(), nil
}

// FromREST normalizes the entries of a /api/v3/ticker/24hr response.
func (n Normalizer) FromREST(entries []json.RawMessage) Result {
	b := n.newBuilder(len(entries))
	for _, raw := range entries {
		var st binance.PriceChangeStats
		if err := json.Unmarshal(raw, &st); err != nil {
			b.drop()
			continue
		}
		b.add(st.Symbol, st.LastPrice, st.PriceChangePercent, st.QuoteVolume)
	}
	return b.result()
}

// Matches reports whether symbol is quoted in the normalizer's asset.
func (n Normalizer) Matches(symbol string) bool {
	return len(symbol) > len(n.QuoteAsset) && strings.HasSuffix(symbol, n.QuoteAsset)
}

type builder struct {
	n        Normalizer
	records  model.MarketSnapshot
	index    map[string]int
	received int
	dropped  int
}

func (n Normalizer) newBuilder(size int) *builder {
	return &builder{
		n:        n,
		records:  make(model.MarketSnapshot, 0, size),
		index:    make(map[string]int, size),
		received: size,
	}
}

func (b *builder) drop() { b.dropped++ }

func (b *builder) add(symbol, price, change, volume string) {
	// Other quote assets are filtered, not dropped.
	if !b.n.Matches(symbol) {
		return
	}

	rec, ok := parseRecord(symbol, price, change, volume)
	if !ok {
		b.drop()
		return
	}

	if i, seen := b.index[symbol]; seen {
		b.records[i] = rec
		return
	}
	b.index[symbol] = len(b.records)
	b.records = append(b.records, rec)
}

func (b *builder) result() Result {
	slices.SortStableFunc(b.records, func(x, y model.TickerRecord) int {
		return cmp.Compare(y.Volume24h, x.Volume24h)
	})
	return Result{Snapshot: b.records, Received: b.received, Dropped: b.dropped}
}

func parseRecord(symbol, price, change, volume string) (model.TickerRecord, bool) {
	p, err := decimal.NewFromString(price)
	if err != nil || !p.IsPositive() {
		return model.TickerRecord{}, false
	}
	c, err := decimal.NewFromString(change)
	if err != nil {
		return model.TickerRecord{}, false
	}
	v, err := decimal.NewFromString(volume)
	if err != nil || !v.IsPositive() {
		return model.TickerRecord{}, false
	}

	return model.TickerRecord{
		Symbol:    symbol,
		Price:     p.InexactFloat64(),
		Change24h: c.InexactFloat64(),
		Volume24h: v.InexactFloat64(),
	}, true
}
