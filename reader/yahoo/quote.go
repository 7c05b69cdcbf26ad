package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stockpulse/config"
	"stockpulse/logger"
	"stockpulse/models"

	"golang.org/x/time/rate"
)

// Reader fetches one year of daily candles plus the live quote for single
// symbols from the Yahoo Finance chart API.
type Reader struct {
	config  *config.Config
	client  *http.Client
	log     *logger.Log
	limiter *rate.Limiter
}

// NewReader creates a Reader with a pooled HTTP client and a shared rate
// limiter so a full-symbol fan-out stays within the provider's tolerance.
func NewReader(cfg *config.Config) *Reader {
	log := logger.GetLogger()

	pool := cfg.Source.Yahoo.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		DisableCompression:  false,
	}

	agent := cfg.Source.Yahoo.UserAgent
	if agent == "" {
		agent = config.DefaultUserAgent
	}

	rl := cfg.Reader.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	reader := &Reader{
		config: cfg,
		client: &http.Client{
			Transport: userAgentTransport{agent: agent, base: transport},
			Timeout:   cfg.Reader.Timeout,
		},
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}

	log.WithComponent("yahoo_reader").WithFields(logger.Fields{
		"url":          cfg.Source.Yahoo.URL,
		"history_days": cfg.Source.Yahoo.HistoryDays,
		"timeout":      cfg.Reader.Timeout,
	}).Info("yahoo reader initialized")

	return reader
}

// FetchQuote returns the record for one symbol. It never fails outward:
// provider errors are logged and degrade to a placeholder record with absent
// numeric fields and an empty history.
func (r *Reader) FetchQuote(ctx context.Context, symbol string) models.QuoteRecord {
	record, err := r.fetchQuote(ctx, symbol)
	if err != nil {
		r.log.WithComponent("yahoo_reader").WithFields(logger.Fields{
			"symbol":    symbol,
			"operation": "fetch_quote",
		}).WithError(err).Warn("failed to fetch quote")
		return models.PlaceholderRecord(symbol)
	}
	return record
}

func (r *Reader) fetchQuote(ctx context.Context, symbol string) (models.QuoteRecord, error) {
	log := r.log.WithComponent("yahoo_reader").WithFields(logger.Fields{
		"symbol":    symbol,
		"operation": "fetch_quote",
	})

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return models.QuoteRecord{}, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	end := time.Now()
	start := end.AddDate(0, 0, -r.config.Source.Yahoo.HistoryDays)

	reqURL := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		r.config.Source.Yahoo.URL, url.PathEscape(symbol), start.Unix(), end.Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.QuoteRecord{}, fmt.Errorf("build request: %w", err)
	}

	fetchStart := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return models.QuoteRecord{}, fmt.Errorf("request chart: %w", err)
	}
	defer resp.Body.Close()
	logger.LogPerformanceEntry(log, "yahoo_reader", "api_request", time.Since(fetchStart), logger.Fields{
		"symbol": symbol,
	})

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return models.QuoteRecord{}, fmt.Errorf("chart API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.QuoteRecord{}, fmt.Errorf("read chart body: %w", err)
	}

	var chart models.YahooChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return models.QuoteRecord{}, fmt.Errorf("decode chart: %w", err)
	}

	record, err := buildRecord(symbol, &chart)
	if err != nil {
		return models.QuoteRecord{}, err
	}

	logger.IncrementQuoteFetch(len(body))
	return record, nil
}

// buildRecord normalizes a chart payload into a QuoteRecord. Timestamps with
// a null close are skipped entirely; no slot is reserved for them.
func buildRecord(symbol string, chart *models.YahooChartResponse) (models.QuoteRecord, error) {
	if len(chart.Chart.Result) == 0 {
		return models.QuoteRecord{}, fmt.Errorf("chart response has no result")
	}
	result := chart.Chart.Result[0]

	meta := result.Meta
	if meta.RegularMarketPrice == nil {
		return models.QuoteRecord{}, fmt.Errorf("chart meta missing regularMarketPrice")
	}
	currentPrice := *meta.RegularMarketPrice

	if len(result.Indicators.Quote) == 0 {
		return models.QuoteRecord{}, fmt.Errorf("chart response has no quote indicators")
	}
	quote := result.Indicators.Quote[0]

	history := make([]models.HistoryPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		var volume *int64
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}
		history = append(history, models.HistoryPoint{
			Date:   time.Unix(ts, 0).Format("2006-01-02"),
			Price:  *quote.Close[i],
			Volume: volume,
		})
	}

	// Previous close is the second-to-last retained candle; with fewer than
	// two candles it falls back to the current price, pinning change to 0.
	previousClose := currentPrice
	if len(history) >= 2 {
		previousClose = history[len(history)-2].Price
	}
	if previousClose == 0 {
		// A NaN change_percent would poison JSON encoding of the whole
		// snapshot; degrade this one symbol instead.
		return models.QuoteRecord{}, fmt.Errorf("previous close is zero")
	}
	change := currentPrice - previousClose
	changePercent := change / previousClose * 100

	name := meta.ShortName
	if name == "" {
		name = symbol
	}

	var volume int64
	if meta.RegularMarketVolume != nil {
		volume = *meta.RegularMarketVolume
	}

	return models.QuoteRecord{
		Symbol:        symbol,
		Name:          name,
		CurrentPrice:  &currentPrice,
		Change:        &change,
		ChangePercent: &changePercent,
		Volume:        &volume,
		History:       history,
	}, nil
}
