// Package fundengine implementa el Fund Engine: un único worker global
// que itera los fondos activos, copia proporcionalmente de los traders
// asignados a cada uno, y actualiza el NAV diario.
package fundengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

// tradesPerPoll limita cuántos trades recientes se piden por trader
// asignado a un fondo en cada sondeo.
const tradesPerPoll = 10

// fundDedupPrefix namespacea el fingerprint de dedup de un fondo para no
// colisionar con el dedup del Copy Engine del mismo trader (un trader
// puede estar seguido individualmente y a la vez asignado a un fondo).
const fundDedupPrefix = "fund"

// concurrentFunds acota cuántos fondos se procesan en paralelo por ciclo.
const concurrentFunds = 4

// State es el estado del ciclo de vida del worker, reportado por
// /api/status.
type State string

const (
	StateIdle      State = "idle"
	StateUpdating  State = "updating"
	StateStopping  State = "stopping"
)

// Config son los parámetros globales del Fund Engine, resueltos desde
// config.CopyConfig / config.GeneralConfig.
type Config struct {
	CopyPercentage float64
	MinCopySize    float64
	MaxCopySize    float64
	MaxTradeAge    time.Duration
	PollInterval   time.Duration
}

// CycleResult agrega lo que produjo una iteración sobre todos los fondos activos.
type CycleResult struct {
	FundsProcessed int
	TradesCopied   int
	Errors         []string
}

// Engine es el Fund Engine global (no por-usuario — opera sobre todos los
// fondos activos del sistema).
type Engine struct {
	store    ports.Store
	gateway  ports.MarketGateway
	notifier ports.Notifier
	clock    ports.Clock
	cfg      Config

	mu    sync.RWMutex
	state State
}

// New crea el Fund Engine.
func New(store ports.Store, gateway ports.MarketGateway, notifier ports.Notifier, clock ports.Clock, cfg Config) *Engine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Engine{store: store, gateway: gateway, notifier: notifier, clock: clock, cfg: cfg, state: StateIdle}
}

// State devuelve el estado actual del worker.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run itera en bucle hasta que ctx se cancele, a cfg.PollInterval.
func (e *Engine) Run(ctx context.Context) {
	e.setState(StateIdle)

	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := e.RunOnce(ctx); err != nil {
			slog.Error("fundengine: cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			e.setState(StateStopping)
			return
		case <-ticker.C:
		}
	}
}

// RunOnce procesa todos los fondos activos: para cada uno, copia trades de
// sus traders asignados proporcional al peso y al AUM, y registra un nuevo
// punto de NAV. Los fondos se procesan con concurrencia acotada — mirrors
// el patrón de fan-out por lotes del gateway de Polymarket.
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	e.setState(StateUpdating)
	defer e.setState(StateIdle)

	funds, err := e.store.ListFunds(ctx, true)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fundengine.RunOnce: list funds: %w", err)
	}

	results := make(chan fundOutcome, len(funds))
	sem := make(chan struct{}, concurrentFunds)
	var wg sync.WaitGroup

	for _, fund := range funds {
		wg.Add(1)
		sem <- struct{}{}
		go func(f domain.Fund) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- e.processFund(ctx, f)
		}(fund)
	}

	wg.Wait()
	close(results)

	agg := CycleResult{FundsProcessed: len(funds)}
	for r := range results {
		agg.TradesCopied += r.copied
		agg.Errors = append(agg.Errors, r.errs...)
	}
	return agg, nil
}

type fundOutcome struct {
	copied int
	errs   []string
}

// processFund sondea los traders asignados a fund, copia los trades
// admitidos, y actualiza el NAV del fondo.
func (e *Engine) processFund(ctx context.Context, fund domain.Fund) fundOutcome {
	outcome := fundOutcome{}

	allocations, err := e.store.ListAllocations(ctx, fund.ID)
	if err != nil {
		outcome.errs = append(outcome.errs, fmt.Sprintf("fund %d: list allocations: %v", fund.ID, err))
		return outcome
	}

	for _, alloc := range allocations {
		if !alloc.Active {
			continue
		}
		trades, err := e.gateway.GetTraderTrades(ctx, alloc.TraderAddress, tradesPerPoll)
		if err != nil {
			outcome.errs = append(outcome.errs, fmt.Sprintf("fund %d trader %s: %v", fund.ID, alloc.TraderAddress, err))
			continue
		}

		for _, trade := range trades {
			if e.copyFundTrade(ctx, fund, alloc, trade) {
				outcome.copied++
			}
		}
	}

	e.updateNAV(ctx, fund)
	return outcome
}

// copyFundTrade aplica dedup y antigüedad, calcula el tamaño de copia
// proporcional al AUM y al peso del trader, y ejecuta la orden.
func (e *Engine) copyFundTrade(ctx context.Context, fund domain.Fund, alloc domain.FundAllocation, trade domain.UpstreamTrade) bool {
	fingerprint := fmt.Sprintf("%s_%d_%s", fundDedupPrefix, fund.ID, trade.ID)

	seen, err := e.store.IsSeen(ctx, fingerprint)
	if err != nil || seen {
		return false
	}

	if !trade.Timestamp.IsZero() && e.clock.Now().Sub(trade.Timestamp) > e.cfg.MaxTradeAge {
		_ = e.store.MarkSeen(ctx, fingerprint)
		return false
	}

	side, ok := domain.ParseSide(trade.Side)
	if !ok || trade.TokenID == "" {
		_ = e.store.MarkSeen(ctx, fingerprint)
		return false
	}

	amount := domain.FundCopySize(fund.TotalAUM, alloc.Weight, trade.USD(), e.cfg.CopyPercentage, e.cfg.MinCopySize, e.cfg.MaxCopySize)
	_ = e.store.MarkSeen(ctx, fingerprint)
	if amount <= 0 {
		return false
	}

	placed, err := e.gateway.PlaceMarketOrder(ctx, fund.OwnerAddress, trade.TokenID, amount, side)
	status := domain.TradeExecuted
	notes := fmt.Sprintf("Fund: %s", fund.Name)
	if err != nil {
		status = domain.TradeFailed
		notes = err.Error()
	} else if placed.CLOBOrderID == "" {
		status = domain.TradeFailed
		notes = "gateway returned no order id"
	}

	t := domain.Trade{
		Timestamp:       e.clock.Now(),
		UserAddress:     fund.OwnerAddress,
		Strategy:        domain.StrategyFund,
		TokenID:         trade.TokenID,
		Side:            side,
		Amount:          amount,
		Price:           trade.Price,
		Market:          trade.Market,
		CopiedFrom:      alloc.TraderAddress,
		OriginalTradeID: fingerprint,
		Status:          status,
		Notes:           notes,
	}

	tradeID, err := e.store.RecordTrade(ctx, t)
	if err != nil {
		slog.Warn("fundengine: record trade failed", "err", err)
		return false
	}

	if err := e.store.RecordFundTrade(ctx, fund.ID, tradeID, alloc.TraderAddress, amount); err != nil {
		slog.Warn("fundengine: record fund trade failed", "fund", fund.ID, "err", err)
	}

	return status == domain.TradeExecuted
}

// updateNAV recalcula el NAV del fondo y registra el punto de performance
// del día UTC en curso (una fila por fondo y día, sobrescrita en cada
// ciclo), con el retorno respecto al último punto de un día anterior.
func (e *Engine) updateNAV(ctx context.Context, fund domain.Fund) {
	nav := domain.ComputeNAV(fund.TotalAUM, fund.TotalShares)
	day := e.clock.Now().UTC().Truncate(24 * time.Hour)

	history, err := e.store.ListPerformance(ctx, fund.ID, 2)
	if err != nil {
		slog.Warn("fundengine: list performance failed", "fund", fund.ID, "err", err)
	}
	var prevNAV float64
	for _, p := range history {
		if p.Date.Before(day) {
			prevNAV = p.NAV
		}
	}

	point := domain.FundPerformancePoint{
		FundID:           fund.ID,
		Date:             day,
		NAV:              nav,
		DailyReturn:      domain.ComputeDailyReturn(nav, prevNAV),
		CumulativeReturn: domain.ComputeCumulativeReturn(nav),
	}
	if err := e.store.RecordPerformance(ctx, point); err != nil {
		slog.Warn("fundengine: record performance failed", "fund", fund.ID, "err", err)
	}
}
