package provider

import (
	"context"
)

// Record is one raw vendor row. Numeric fields are loosely typed: they may
// arrive as strings, numbers, null or not at all.
type Record map[string]any

// Response is the vendor envelope shared by every market-data call.
// A call is successful only when Success holds at least one record.
type Response struct {
	Success []Record
	Status  int
	Error   string
}

// OK reports whether the vendor returned usable data.
func (r Response) OK() bool { return len(r.Success) > 0 }

// OptionChainQuery selects the contracts returned by GetOptionChainQuotes.
// Empty ExpiryDate means the nearest expiry and empty StrikePrice means all strikes.
type OptionChainQuery struct {
	StockCode    string
	ExchangeCode string
	ProductType  string
	ExpiryDate   string
	Right        string
	StrikePrice  string
}

// DefaultOptionChainQuery is the NIFTY nearest-expiry chain with both rights.
func DefaultOptionChainQuery() OptionChainQuery {
	return OptionChainQuery{
		StockCode:    "NIFTY",
		ExchangeCode: "NFO",
		ProductType:  "options",
		Right:        "others",
	}
}

// MarketData is an authenticated vendor session.
//
//go:generate mockgen -package=market_test -destination=../market/mock_provider_test.go -source=provider.go
type MarketData interface {
	GetQuotes(ctx context.Context, exchange, stockCode string) (Response, error)
	GetOptionChainQuotes(ctx context.Context, q OptionChainQuery) (Response, error)
}

// SessionProvider hands out vendor sessions. Implementations may open a new
// session per call or reuse one.
type SessionProvider interface {
	Acquire(ctx context.Context) (MarketData, error)
}
