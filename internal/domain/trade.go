package domain

import "time"

// Side is the direction of a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide normalizes a raw side string, returning false if it is neither
// BUY nor SELL.
func ParseSide(raw string) (Side, bool) {
	switch Side(raw) {
	case Buy:
		return Buy, true
	case Sell:
		return Sell, true
	default:
		return "", false
	}
}

// Strategy identifies which engine produced a Trade.
type Strategy string

const (
	StrategyCopy      Strategy = "copy"
	StrategyArbitrage Strategy = "arbitrage"
	StrategyFund      Strategy = "fund"
)

// TradeStatus is the outcome of an attempted downstream trade.
type TradeStatus string

const (
	TradeExecuted TradeStatus = "executed"
	TradeFailed   TradeStatus = "failed"
	TradeDryRun   TradeStatus = "dry_run"
)

// Trade is a downstream order this system executed (or attempted to
// execute) on behalf of a user. Append-only.
type Trade struct {
	ID              int64
	Timestamp       time.Time
	UserAddress     string
	Strategy        Strategy
	TokenID         string
	Side            Side
	Amount          float64 // USD
	Price           float64
	Market          string
	ExpectedProfit  float64
	CopiedFrom      string // trader address, or "" if not a copy
	OriginalTradeID string // upstream fingerprint
	Status          TradeStatus
	Notes           string
}

// TradeFilter narrows a Store.ListTrades query.
type TradeFilter struct {
	UserAddress string
	Strategy    Strategy
	Status      TradeStatus
	Search      string
	Limit       int
	Offset      int
}

// PnLPoint is one day of a cumulative expected-profit time series.
type PnLPoint struct {
	Date             time.Time
	ExpectedProfit   float64
	CumulativeProfit float64
}
