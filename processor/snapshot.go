package processor

import (
	"context"
	"sync"
	"time"

	"stockpulse/config"
	"stockpulse/logger"
	"stockpulse/models"
)

// QuoteFetcher is satisfied by the yahoo reader. It never fails outward;
// degraded fetches come back as placeholder records.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) models.QuoteRecord
}

// Aggregator fans one fetch out per tracked symbol and assembles the full
// market snapshot.
type Aggregator struct {
	config  *config.Config
	fetcher QuoteFetcher
	log     *logger.Log
	symbols []string
}

func NewAggregator(cfg *config.Config, fetcher QuoteFetcher) *Aggregator {
	return &Aggregator{
		config:  cfg,
		fetcher: fetcher,
		log:     logger.GetLogger(),
		symbols: cfg.Market.Symbols,
	}
}

// Snapshot produces exactly one snapshot. All fetches run concurrently and
// the call returns only after every one has completed, so a partial snapshot
// is never observable. Every tracked symbol is present in the result.
func (a *Aggregator) Snapshot(ctx context.Context) models.MarketSnapshot {
	start := time.Now()

	records := make([]models.QuoteRecord, len(a.symbols))
	var wg sync.WaitGroup
	for i, symbol := range a.symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			records[i] = a.fetcher.FetchQuote(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()

	snapshot := make(models.MarketSnapshot, len(a.symbols))
	for _, record := range records {
		snapshot[record.Symbol] = record
	}

	logger.IncrementSnapshotBuild()
	log := a.log.WithComponent("aggregator")
	log.LogMetric("aggregator", "snapshot_duration_ms", float64(time.Since(start).Milliseconds()), "gauge", logger.Fields{})
	log.LogMetric("aggregator", "symbols_aggregated", len(a.symbols), "gauge", logger.Fields{})
	logger.LogDataFlowEntry(log, "yahoo_api", "snapshot", len(records), "quote_records")

	return snapshot
}

// Symbols returns the tracked symbol set in its configured order.
func (a *Aggregator) Symbols() []string {
	return a.symbols
}
