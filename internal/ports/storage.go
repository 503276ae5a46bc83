package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// Store persiste todo el estado del sistema. Expone operaciones
// tipadas y transaccionales; toda mutación multi-fila se ejecuta dentro de
// una única transacción. El Store no contiene lógica de dominio — sólo
// lectura/escritura.
type Store interface {
	// --- Users / auth / whitelist ---
	UpsertUser(ctx context.Context, address string, role domain.Role) (domain.User, error)
	GetUser(ctx context.Context, address string) (domain.User, bool, error)
	CreateNonce(ctx context.Context, value string) error
	ConsumeNonce(ctx context.Context, value, address string) (bool, error)
	IsWhitelisted(ctx context.Context, address string) (bool, error)
	AddWhitelist(ctx context.Context, address, addedBy string) (bool, error)
	// RemoveWhitelist elimina una dirección. Devuelve error si address es
	// el owner — el owner no puede auto-expulsarse.
	RemoveWhitelist(ctx context.Context, address string) error
	ListWhitelist(ctx context.Context) ([]domain.WhitelistEntry, error)

	// --- Trades ---
	RecordTrade(ctx context.Context, t domain.Trade) (int64, error)
	ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error)
	DailyExecutedSpend(ctx context.Context, userAddress string, strategy domain.Strategy, traderAddress string) (float64, error)
	PnLSeries(ctx context.Context, userAddress string, strategy domain.Strategy, days int) ([]domain.PnLPoint, error)
	CopyStats(ctx context.Context, userAddress string) (domain.CopyStats, error)
	ArbStats(ctx context.Context, userAddress string) (domain.ArbStats, error)

	// --- Followed traders ---
	AddFollow(ctx context.Context, userAddress, traderAddress, alias string) (bool, error)
	RemoveFollow(ctx context.Context, userAddress, traderAddress string) (bool, error)
	ListFollows(ctx context.Context, userAddress string, includeInactive bool) ([]domain.FollowedTrader, error)
	UpdateFollowOverrides(ctx context.Context, userAddress, traderAddress string, overrides domain.TraderOverrides) error
	IncrementFollowCounters(ctx context.Context, userAddress, traderAddress string, amountSpent float64) error

	// --- Dedup ---
	MarkSeen(ctx context.Context, fingerprint string) error
	IsSeen(ctx context.Context, fingerprint string) (bool, error)
	ExpireSeen(ctx context.Context, olderThan time.Time) (int64, error)

	// --- Positions ---
	UpsertPosition(ctx context.Context, p domain.Position) (int64, error)
	GetOpenPosition(ctx context.Context, userAddress, tokenID string) (domain.Position, bool, error)
	ListOpenPositions(ctx context.Context, userAddress string) ([]domain.Position, error)
	ClosePosition(ctx context.Context, id int64) error
	BatchUpdatePrices(ctx context.Context, updates map[int64]float64) error

	// --- Funds ---
	CreateFund(ctx context.Context, f domain.Fund) (int64, error)
	UpdateFund(ctx context.Context, fundID int64, ownerAddress string, fields map[string]any) (bool, error)
	GetFund(ctx context.Context, fundID int64) (domain.Fund, bool, error)
	ListFunds(ctx context.Context, activeOnly bool) ([]domain.Fund, error)
	ReplaceAllocations(ctx context.Context, fundID int64, allocs []domain.FundAllocation) error
	ListAllocations(ctx context.Context, fundID int64) ([]domain.FundAllocation, error)
	InvestInFund(ctx context.Context, fundID int64, investorAddress string, amount float64) (domain.FundInvestment, error)
	WithdrawFromFund(ctx context.Context, investmentID int64, investorAddress string) (float64, error)
	ListInvestorInvestments(ctx context.Context, investorAddress string) ([]domain.FundInvestment, error)
	RecordPerformance(ctx context.Context, p domain.FundPerformancePoint) error
	ListPerformance(ctx context.Context, fundID int64, days int) ([]domain.FundPerformancePoint, error)
	RecordFundTrade(ctx context.Context, fundID, tradeID int64, traderAddress string, amount float64) error
	ListFundTrades(ctx context.Context, fundID int64, limit int) ([]domain.Trade, error)

	// --- Preferences & API creds ---
	GetPreferences(ctx context.Context, userAddress string) (domain.Preferences, error)
	MergePreferences(ctx context.Context, userAddress string, patch map[string]any) error
	GetCreds(ctx context.Context, userAddress string) (domain.APICredentials, bool, error)
	SaveCreds(ctx context.Context, creds domain.APICredentials) error
	DeleteCreds(ctx context.Context, userAddress string) error

	// --- Events ---
	RecordEvent(ctx context.Context, e domain.EngineEvent) error
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.EngineEvent, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
