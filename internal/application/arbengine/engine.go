// Package arbengine implementa el Arbitrage Engine: un worker por usuario
// que escanea mercados binarios buscando pares YES/NO cuyo costo combinado
// cae por debajo de $1.00, y ejecuta ambas piernas como órdenes FOK.
package arbengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

// State es el estado del ciclo de vida del worker, reportado por
// /api/status.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateExecuting State = "executing"
	StateStopping  State = "stopping"
)

// Config son los parámetros de un Engine, resueltos desde config.ArbitrageConfig.
type Config struct {
	MinProfitPct    float64
	TradeAmount     float64
	MaxPositionSize float64
	PollInterval    time.Duration
}

// CycleResult agrega lo que produjo una iteración de escaneo.
type CycleResult struct {
	MarketsScanned int
	Opportunities  int
	Executed       int
	Failed         int
	Errors         []string
}

// Engine es el Arbitrage Engine de un único usuario.
type Engine struct {
	userAddress string
	store       ports.Store
	gateway     ports.MarketGateway
	notifier    ports.Notifier
	clock       ports.Clock
	cfg         Config

	mu    sync.RWMutex
	state State
}

// New crea un Arbitrage Engine para userAddress.
func New(userAddress string, store ports.Store, gateway ports.MarketGateway, notifier ports.Notifier, clock ports.Clock, cfg Config) *Engine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Engine{
		userAddress: userAddress,
		store:       store,
		gateway:     gateway,
		notifier:    notifier,
		clock:       clock,
		cfg:         cfg,
		state:       StateIdle,
	}
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

// Run escanea en bucle hasta que ctx se cancele, a cfg.PollInterval.
func (e *Engine) Run(ctx context.Context) {
	e.setState(StateIdle)

	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := e.RunOnce(ctx); err != nil {
			slog.Error("arbengine: cycle failed", "user", e.userAddress, "err", err)
		}

		select {
		case <-ctx.Done():
			e.setState(StateStopping)
			return
		case <-ticker.C:
		}
	}
}

// RunOnce escanea mercados binarios activos, evalúa cada par YES/NO con
// domain.CheckArbitrage, y ejecuta las oportunidades rentables encontradas.
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	e.setState(StateScanning)
	defer e.setState(StateIdle)

	result := CycleResult{}

	markets, err := e.gateway.FetchSamplingMarkets(ctx)
	if err != nil {
		return result, fmt.Errorf("arbengine.RunOnce: fetch sampling markets: %w", err)
	}
	result.MarketsScanned = len(markets)

	for _, market := range markets {
		yes := market.YesToken()
		no := market.NoToken()
		if yes.TokenID == "" || no.TokenID == "" {
			continue
		}

		books, err := e.gateway.FetchOrderBooks(ctx, []string{yes.TokenID, no.TokenID})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", market.Question, err))
			slog.Warn("arbengine: fetch order books failed", "market", market.Question, "err", err)
			continue
		}

		opp, found := domain.CheckArbitrage(yes.TokenID, no.TokenID, market.Question,
			books[yes.TokenID], books[no.TokenID], e.cfg.MinProfitPct)
		if !found {
			continue
		}
		result.Opportunities++
		e.recordEvent(ctx, "arbitrage_opportunity",
			fmt.Sprintf("%s: combined=%.4f profit=%.2f%% max_profitable_depth=$%.0f",
				market.Question, opp.CombinedCost, opp.ProfitPct, opp.MaxProfitableDepth()))

		if e.execute(ctx, opp) {
			result.Executed++
		} else {
			result.Failed++
		}
	}

	return result, nil
}

// execute ejecuta ambas piernas de una oportunidad como órdenes FOK de
// mercado. Una pierna fallida deja una posición descubierta — se registra
// como trade fallido y se notifica, pero no se revierte la pierna exitosa
// (no hay forma de deshacer un FOK ya llenado).
func (e *Engine) execute(ctx context.Context, opp domain.ArbitrageOpportunity) bool {
	e.setState(StateExecuting)
	defer e.setState(StateScanning)

	amount := e.cfg.TradeAmount
	if e.cfg.MaxPositionSize > 0 && amount > e.cfg.MaxPositionSize {
		amount = e.cfg.MaxPositionSize
	}
	if maxDepth := opp.MaxProfitableDepth(); maxDepth > 0 && amount > maxDepth {
		slog.Info("arbengine: capping trade to profitable depth", "market", opp.Market,
			"requested", amount, "max_profitable_depth", maxDepth)
		amount = maxDepth
	}
	expectedProfit := opp.Profit(amount)
	yesUSD, noUSD := opp.SplitUSD(amount)

	yesOK := e.executeLeg(ctx, opp, opp.YesTokenID, "YES", yesUSD, opp.YesPrice, expectedProfit/2)
	noOK := e.executeLeg(ctx, opp, opp.NoTokenID, "NO", noUSD, opp.NoPrice, expectedProfit/2)

	if !yesOK || !noOK {
		slog.Error("arbengine: partial arbitrage execution", "market", opp.Market, "yes_ok", yesOK, "no_ok", noOK)
		e.recordEvent(ctx, "arbitrage_partial",
			fmt.Sprintf("partial arbitrage on %s: yes_ok=%v no_ok=%v", opp.Market, yesOK, noOK))
		return false
	}
	return true
}

func (e *Engine) executeLeg(ctx context.Context, opp domain.ArbitrageOpportunity, tokenID, label string, amountUSD, price, expectedProfit float64) bool {
	placed, err := e.gateway.PlaceMarketOrder(ctx, e.userAddress, tokenID, amountUSD, domain.Buy)

	status := domain.TradeExecuted
	notes := ""
	if err != nil {
		status = domain.TradeFailed
		notes = err.Error()
	} else if placed.CLOBOrderID == "" {
		status = domain.TradeFailed
		notes = "gateway returned no order id"
	}

	t := domain.Trade{
		Timestamp:      e.clock.Now(),
		UserAddress:    e.userAddress,
		Strategy:       domain.StrategyArbitrage,
		TokenID:        tokenID,
		Side:           domain.Buy,
		Amount:         amountUSD,
		Price:          price,
		Market:         fmt.Sprintf("%s (%s)", opp.Market, label),
		ExpectedProfit: expectedProfit,
		Status:         status,
		Notes:          notes,
	}

	if _, recordErr := e.store.RecordTrade(ctx, t); recordErr != nil {
		slog.Warn("arbengine: record trade failed", "err", recordErr)
	}

	if status != domain.TradeExecuted {
		return false
	}

	existing, found, err := e.store.GetOpenPosition(ctx, e.userAddress, tokenID)
	if err != nil {
		slog.Warn("arbengine: get open position failed", "err", err)
	}
	var existingPtr *domain.Position
	if found {
		existingPtr = &existing
	}
	newPos := domain.UpsertPosition(existingPtr, e.userAddress, tokenID, opp.Market,
		domain.Buy, domain.StrategyArbitrage, "", amountUSD, price, e.clock.Now())
	if found {
		newPos.ID = existing.ID
	}
	if _, err := e.store.UpsertPosition(ctx, newPos); err != nil {
		slog.Warn("arbengine: upsert position failed", "err", err)
	}

	return true
}

func (e *Engine) recordEvent(ctx context.Context, eventType, message string) {
	if err := e.store.RecordEvent(ctx, domain.EngineEvent{
		Timestamp:   e.clock.Now(),
		UserAddress: e.userAddress,
		Strategy:    domain.StrategyArbitrage,
		EventType:   eventType,
		Message:     message,
	}); err != nil {
		slog.Warn("arbengine: record event failed", "err", err)
	}
	if e.notifier != nil {
		_ = e.notifier.NotifyEvent(ctx, domain.EngineEvent{
			Timestamp:   e.clock.Now(),
			UserAddress: e.userAddress,
			Strategy:    domain.StrategyArbitrage,
			EventType:   eventType,
			Message:     message,
		})
	}
}
