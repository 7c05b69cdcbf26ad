package models

// YahooChartResponse mirrors the subset of the Yahoo Finance v8 chart payload
// consumed by the reader.
type YahooChartResponse struct {
	Chart YahooChart `json:"chart"`
}

type YahooChart struct {
	Result []YahooChartResult `json:"result"`
	Error  any                `json:"error"`
}

type YahooChartResult struct {
	Meta       YahooChartMeta  `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators YahooIndicators `json:"indicators"`
}

// YahooChartMeta holds the authoritative live quote fields. The regular
// market price is a pointer so a missing field is distinguishable from zero.
type YahooChartMeta struct {
	RegularMarketPrice  *float64 `json:"regularMarketPrice"`
	RegularMarketVolume *int64   `json:"regularMarketVolume"`
	ShortName           string   `json:"shortName"`
}

type YahooIndicators struct {
	Quote []YahooQuote `json:"quote"`
}

// YahooQuote arrives index-aligned with Timestamp. Entries are null for days
// the provider has no close, so both series decode into pointer slices.
type YahooQuote struct {
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
