package domain

import "time"

// Fund es un vehículo de inversión que copia de varios traders a la vez,
// proporcional al peso de cada uno, con capital aportado por investors.
type Fund struct {
	ID            int64
	OwnerAddress  string
	Name          string
	Description   string
	CreatedAt     time.Time
	Active        bool
	TotalAUM      float64
	NAVPerShare   float64
	TotalShares   float64
}

// FundAllocation es el peso que un Fund asigna a uno de sus traders.
// FundCopySize multiplica por el weight tal cual, sin normalizar; la API
// HTTP exige que los weights de un fondo sumen 1.0 (±0.01) al fijarlos.
type FundAllocation struct {
	ID             int64
	FundID         int64
	TraderAddress  string
	Weight         float64
	Active         bool
}

// FundInvestmentStatus indica si una inversión sigue activa o fue retirada.
type FundInvestmentStatus string

const (
	FundInvestmentActive    FundInvestmentStatus = "active"
	FundInvestmentWithdrawn FundInvestmentStatus = "withdrawn"
)

// FundInvestment es el aporte de capital de un investor a un Fund, en
// número de shares al NAV vigente en el momento de invertir.
type FundInvestment struct {
	ID              int64
	FundID          int64
	InvestorAddress string
	AmountInvested  float64
	Shares          float64
	InvestedAt      time.Time
	Status          FundInvestmentStatus
}

// FundPerformancePoint es la foto diaria del NAV de un fondo.
type FundPerformancePoint struct {
	FundID           int64
	Date             time.Time
	NAV              float64
	DailyReturn      float64 // % respecto al NAV del día anterior
	CumulativeReturn float64 // % respecto al NAV inicial de 1.0
}

// maxAUMFractionPerTrade limita cuánto de un único trade de fondo puede
// representar respecto al AUM total, para no concentrar el capital del
// fondo en una sola copia.
const maxAUMFractionPerTrade = 0.05

// FundCopySize calcula el tamaño en USD de una copia a nivel de fondo:
// proporcional al tamaño original del trade y al peso del trader, acotado
// por una fracción del AUM total y por los límites min/max del fondo.
func FundCopySize(aum, traderWeight, originalUSD, copyPercentage, minCopySize, maxCopySize float64) float64 {
	if aum <= 0 {
		return 0
	}
	size := originalUSD * copyPercentage * traderWeight
	size = maxFloat(size, minCopySize)
	size = minFloat(size, minFloat(maxCopySize, aum*maxAUMFractionPerTrade))
	return round2(size)
}

// InvestShares calcula cuántas shares recibe un investor al aportar amount
// dólares al NAV actual del fondo.
func InvestShares(amount, navPerShare float64) float64 {
	if navPerShare <= 0 {
		return 0
	}
	return amount / navPerShare
}

// WithdrawAmount calcula el valor en USD de retirar la totalidad de unas
// shares al NAV actual.
func WithdrawAmount(shares, navPerShare float64) float64 {
	return shares * navPerShare
}

// ComputeNAV recalcula el NAV por share de un fondo: total_aum/total_shares,
// con 1.0 como NAV inicial cuando todavía no hay shares emitidas.
func ComputeNAV(totalAUM, totalShares float64) float64 {
	if totalShares <= 0 {
		return 1.0
	}
	return totalAUM / totalShares
}

// ComputeDailyReturn calcula el retorno porcentual de nav respecto a
// prevNAV. Devuelve 0 si no hay NAV previo o es inválido.
func ComputeDailyReturn(nav, prevNAV float64) float64 {
	if prevNAV <= 0 {
		return 0
	}
	return (nav - prevNAV) / prevNAV * 100
}

// ComputeCumulativeReturn calcula el retorno porcentual de nav respecto al
// NAV inicial de 1.0.
func ComputeCumulativeReturn(nav float64) float64 {
	return (nav - 1.0) / 1.0 * 100
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
