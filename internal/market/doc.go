// Package market turns Binance 24h ticker payloads into MarketSnapshots and
// holds the one current snapshot that dashboard and chat consumers read.
//
// Both upstream encodings go through the same pipeline:
//   - keep pairs quoted in the configured asset (suffix match)
//   - drop records with an unparseable field, non-positive price or volume
//   - last writer wins per symbol within a batch
//   - stable sort by 24h quote volume, highest first
package market
