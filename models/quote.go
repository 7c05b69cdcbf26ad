package models

// HistoryPoint is a single retained daily candle. Volume stays a pointer
// because the provider reports null volume for some trading days.
type HistoryPoint struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Volume *int64  `json:"volume"`
}

// QuoteRecord carries the live quote and one year of daily history for a
// single symbol. Numeric fields are pointers so a degraded record serializes
// its absent values as JSON null rather than zero.
type QuoteRecord struct {
	Symbol        string         `json:"symbol"`
	Name          string         `json:"name"`
	CurrentPrice  *float64       `json:"current_price"`
	Change        *float64       `json:"change"`
	ChangePercent *float64       `json:"change_percent"`
	Volume        *int64         `json:"volume"`
	History       []HistoryPoint `json:"history"`
}

// MarketSnapshot maps every tracked symbol to the record produced for it in
// one aggregation cycle. A snapshot always holds one entry per tracked
// symbol; failed fetches contribute placeholder records, never missing keys.
type MarketSnapshot map[string]QuoteRecord

// PlaceholderRecord is the degraded record substituted when a fetch fails.
// History is allocated empty so it serializes as [] instead of null.
func PlaceholderRecord(symbol string) QuoteRecord {
	return QuoteRecord{
		Symbol:  symbol,
		Name:    symbol,
		History: []HistoryPoint{},
	}
}
