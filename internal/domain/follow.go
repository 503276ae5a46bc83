package domain

import "time"

// FollowedTrader es una wallet que un usuario sigue para copy trading, con
// overrides opcionales sobre los defaults del usuario.
type FollowedTrader struct {
	UserAddress   string
	Address       string
	Alias         string
	AddedAt       time.Time
	Active        bool
	TotalCopied   int
	TotalSpent    float64
	Overrides     TraderOverrides
}

// EngineEvent es una entrada del log de actividad append-only de un motor.
type EngineEvent struct {
	ID          int64
	Timestamp   time.Time
	UserAddress string
	Strategy    Strategy
	EventType   string
	Message     string
	Details     string
}

// EventFilter narrows a Store.ListEvents query.
type EventFilter struct {
	UserAddress string
	Strategy    Strategy
	Limit       int
	Offset      int
}

// CopyStats agrega las estadísticas del Copy Engine de un usuario.
type CopyStats struct {
	TotalTrades          int
	TotalSpent           float64
	TotalExecuted        float64
	FailedTrades         int
	UniqueTradersCopied  int
}

// ArbStats agrega las estadísticas del Arbitrage Engine de un usuario.
type ArbStats struct {
	TotalTrades          int
	TotalSpent           float64
	TotalExpectedProfit  float64
	FailedTrades         int
}
