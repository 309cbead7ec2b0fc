// Package normalize turns raw Breeze records into the shapes served to the
// frontend. Nothing here returns an error: fields that are missing or do not
// parse as numbers become zero.
package normalize

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"breezerelay/internal/provider"
)

// IndexQuote is the latest price and daily change of one market index.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// OptionRecord is the market data of a single option contract.
type OptionRecord struct {
	Strike   float64 `json:"strike"`
	LTP      float64 `json:"ltp"`
	IV       float64 `json:"iv"`
	Chng     float64 `json:"chng"`
	ChngInOI float64 `json:"chngInOI"`
	OI       float64 `json:"oi"`
	Volume   float64 `json:"volume"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
}

// OptionChain is the response of the option-chain endpoint.
// UnderlyingPrice is always zero; the frontend fills it from the index feed.
type OptionChain struct {
	Calls           []OptionRecord `json:"calls"`
	Puts            []OptionRecord `json:"puts"`
	UnderlyingPrice float64        `json:"underlyingPrice"`
}

const (
	rightCall = "Call"
	rightPut  = "Put"
)

// NormalizeIndexQuote maps a raw quote onto an IndexQuote labelled with symbol.
// A missing previous_close falls back to the last traded price so the change
// is zero rather than the full price.
func NormalizeIndexQuote(raw provider.Record, symbol string) IndexQuote {
	price := Float(raw["ltp"])
	prevClose := price
	if v, ok := lookup(raw, "previous_close"); ok {
		prevClose = Float(v)
	}

	change := price - prevClose
	var changePercent float64
	if prevClose != 0 {
		changePercent = change / prevClose * 100
	}

	name := symbol
	if v, ok := raw["stock_name"].(string); ok && v != "" {
		name = v
	}

	return IndexQuote{
		Symbol:        symbol,
		Name:          name,
		Price:         price,
		Change:        Round2(change),
		ChangePercent: Round2(changePercent),
	}
}

// NormalizeOptionRecord renames and coerces the fields of one option-chain row.
func NormalizeOptionRecord(raw provider.Record) OptionRecord {
	return OptionRecord{
		Strike:   Float(raw["strike_price"]),
		LTP:      Float(raw["ltp"]),
		IV:       Float(raw["iv"]),
		Chng:     Float(raw["change"]),
		ChngInOI: Float(raw["open_interest_change"]),
		OI:       Float(raw["open_interest"]),
		Volume:   Float(raw["total_traded_volume"]),
		Bid:      Float(raw["best_bid_price"]),
		Ask:      Float(raw["best_ask_price"]),
	}
}

// PartitionAndSortOptionChain splits rows into calls and puts by their "right"
// field and sorts each side by strike. Rows with any other right are dropped.
// Both slices are non-nil so they encode as [] rather than null.
func PartitionAndSortOptionChain(raw []provider.Record) (calls, puts []OptionRecord) {
	calls = make([]OptionRecord, 0, len(raw)/2)
	puts = make([]OptionRecord, 0, len(raw)/2)
	for _, r := range raw {
		right, _ := r["right"].(string)
		switch right {
		case rightCall:
			calls = append(calls, NormalizeOptionRecord(r))
		case rightPut:
			puts = append(puts, NormalizeOptionRecord(r))
		}
	}
	byStrike := func(a, b OptionRecord) int { return cmp.Compare(a.Strike, b.Strike) }
	slices.SortStableFunc(calls, byStrike)
	slices.SortStableFunc(puts, byStrike)
	return calls, puts
}

// NewOptionChain builds the option-chain response from raw rows.
func NewOptionChain(raw []provider.Record) OptionChain {
	calls, puts := PartitionAndSortOptionChain(raw)
	return OptionChain{Calls: calls, Puts: puts}
}

// Float coerces a loosely typed vendor value to float64. Anything that is not
// a finite number or a numeric string yields 0.
func Float(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Round2 rounds the exact binary value of f to two decimal places, breaking
// exact ties to even. 0.125 becomes 0.12 and 2.675 (stored just below) 2.67.
func Round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return decimal.RequireFromString(strconv.FormatFloat(f, 'f', 2, 64)).InexactFloat64()
}

// lookup treats JSON null the same as an absent key.
func lookup(raw provider.Record, key string) (any, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
