// Package copyengine implementa el Copy Engine: un worker por usuario que
// sondea a sus traders seguidos y replica sus trades según la configuración
// de sizing resuelta por domain.Decide.
package copyengine

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
	StateIdle          State = "idle"
	StateBootstrapping State = "bootstrapping"
	StatePolling       State = "polling"
	StateExecuting     State = "executing"
	StateStopping      State = "stopping"
)

// tradesPerPoll limita cuántos trades recientes se piden por trader en cada
// sondeo — suficiente para no perder trades entre iteraciones al intervalo
// de poll configurado.
const tradesPerPoll = 20

// seenTTL es cuánto tiempo se retiene un fingerprint en seen_trade_ids antes
// de poder purgarse — pasado este umbral asumimos que el trader nunca va a
// reenviar ese trade y liberamos el espacio.
const seenTTL = 7 * 24 * time.Hour

// maintenanceEvery es la cadencia, en iteraciones de polling, del
// mantenimiento periódico (purga de dedup + stats).
const maintenanceEvery = 20

// Config son los parámetros de un Engine, resueltos desde config.CopyConfig.
type Config struct {
	Defaults         domain.UserDefaults
	GlobalDailyLimit float64 // tope de gasto diario agregado de todos los traders
	PollInterval     time.Duration

	// DryRun desactiva la colocación real de órdenes: el pipeline completo
	// corre igual (detección, sizing, dedup, notificaciones) pero
	// executeCopy nunca llama al gateway y el trade se registra como
	// domain.TradeDryRun.
	DryRun bool
}

// CycleResult agrega lo que produjo una iteración de polling.
type CycleResult struct {
	TradersPolled  int
	TradesSeen     int
	TradesCopied   int
	TradesRejected int
	Errors         []string
}

// Engine es el Copy Engine de un único usuario.
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

// New crea un Copy Engine para userAddress.
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

// Run sondea en bucle hasta que ctx se cancele, a cfg.PollInterval. Antes de
// la primera iteración corre un bootstrap que marca como vistos todos los
// trades recientes de cada trader seguido, sin copiarlos — si no lo
// hiciéramos, el primer RunOnce trataría cada trade histórico como nuevo y
// los copiaría en vivo.
func (e *Engine) Run(ctx context.Context) {
	e.setState(StateBootstrapping)

	marked, err := e.bootstrap(ctx)
	if err != nil {
		slog.Error("copyengine: bootstrap failed", "user", e.userAddress, "err", err)
	}
	e.recordEvent(ctx, domain.StrategyCopy, "engine_start",
		fmt.Sprintf("copy engine started — marked %d historical trades as seen (dry_run=%v)", marked, e.cfg.DryRun))

	defer e.recordEvent(ctx, domain.StrategyCopy, "engine_stop", "copy engine stopped")
	defer e.setState(StateIdle)

	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	iteration := 0
	for {
		result, err := e.RunOnce(ctx)
		if err != nil {
			slog.Error("copyengine: cycle failed", "user", e.userAddress, "err", err)
		}
		iteration++

		if iteration%maintenanceEvery == 0 {
			e.runMaintenance(ctx, iteration, result)
		}

		select {
		case <-ctx.Done():
			e.setState(StateStopping)
			return
		case <-ticker.C:
		}
	}
}

// bootstrap recorre los trades recientes de cada trader seguido y los marca
// como vistos sin ejecutarlos, para que el primer RunOnce sólo reaccione a
// trades genuinamente nuevos en adelante.
func (e *Engine) bootstrap(ctx context.Context) (int, error) {
	follows, err := e.store.ListFollows(ctx, e.userAddress, false)
	if err != nil {
		return 0, fmt.Errorf("copyengine.bootstrap: list follows: %w", err)
	}

	marked := 0
	for _, follow := range follows {
		trades, err := e.gateway.GetTraderTrades(ctx, follow.Address, tradesPerPoll)
		if err != nil {
			slog.Warn("copyengine: bootstrap poll trader failed", "trader", follow.Address, "err", err)
			continue
		}
		for _, trade := range trades {
			seen, err := e.store.IsSeen(ctx, trade.ID)
			if err != nil {
				slog.Warn("copyengine: bootstrap dedup lookup failed", "fingerprint", trade.ID, "err", err)
				continue
			}
			if seen {
				continue
			}
			if err := e.store.MarkSeen(ctx, trade.ID); err != nil {
				slog.Warn("copyengine: bootstrap mark seen failed", "fingerprint", trade.ID, "err", err)
				continue
			}
			marked++
		}
	}
	return marked, nil
}

// runMaintenance corre cada maintenanceEvery iteraciones: purga el dedup de
// entradas viejas y emite un evento periódico de estadísticas. Recargar la
// lista de follows no hace falta aparte — RunOnce ya la relee en cada
// llamada.
func (e *Engine) runMaintenance(ctx context.Context, iteration int, lastResult CycleResult) {
	cutoff := e.clock.Now().Add(-seenTTL)
	expired, err := e.store.ExpireSeen(ctx, cutoff)
	if err != nil {
		slog.Warn("copyengine: expire seen trades failed", "err", err)
	}

	e.recordEvent(ctx, domain.StrategyCopy, "periodic_stats",
		fmt.Sprintf("iteration #%d: copied %d trades this cycle, purged %d expired dedup entries",
			iteration, lastResult.TradesCopied, expired))
}

// RunOnce ejecuta una iteración de sondeo: para cada trader seguido activo,
// obtiene sus últimos trades, decide cuáles copiar, y ejecuta las copias
// admitidas. Best-effort por trader — un fallo de un trader no detiene el
// resto (grounded en la aislación por-trader de copy_trader.py).
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	e.setState(StatePolling)
	defer e.setState(StateIdle)

	result := CycleResult{}

	follows, err := e.store.ListFollows(ctx, e.userAddress, false)
	if err != nil {
		return result, fmt.Errorf("copyengine.RunOnce: list follows: %w", err)
	}

	now := e.clock.Now()
	globalSpend, err := e.store.DailyExecutedSpend(ctx, e.userAddress, domain.StrategyCopy, "")
	if err != nil {
		return result, fmt.Errorf("copyengine.RunOnce: daily spend: %w", err)
	}

	for _, follow := range follows {
		result.TradersPolled++

		trades, err := e.gateway.GetTraderTrades(ctx, follow.Address, tradesPerPoll)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", follow.Address, err))
			slog.Warn("copyengine: poll trader failed", "trader", follow.Address, "err", err)
			continue
		}

		for _, trade := range trades {
			result.TradesSeen++
			copied, rejected := e.evaluateAndCopy(ctx, follow, trade, now, globalSpend)
			if copied {
				result.TradesCopied++
				globalSpend, _ = e.store.DailyExecutedSpend(ctx, e.userAddress, domain.StrategyCopy, "")
			}
			if rejected {
				result.TradesRejected++
			}
		}
	}

	return result, nil
}

// evaluateAndCopy decide si trade debe copiarse y, si es así, lo ejecuta.
// Devuelve (copied, rejected) — un trade ya visto no es ni copiado ni
// "rechazado" (no es una decisión nueva).
func (e *Engine) evaluateAndCopy(ctx context.Context, follow domain.FollowedTrader, trade domain.UpstreamTrade, now time.Time, globalSpend float64) (copied, rejected bool) {
	fingerprint := trade.ID

	seen, err := e.store.IsSeen(ctx, fingerprint)
	if err != nil {
		slog.Warn("copyengine: dedup lookup failed", "fingerprint", fingerprint, "err", err)
		return false, false
	}

	if e.notifier != nil && !seen {
		_ = e.notifier.NotifyTradeDetected(ctx, follow, trade)
	}

	settings := domain.ResolveSettings(e.cfg.Defaults, follow.Overrides)

	traderSpend, err := e.store.DailyExecutedSpend(ctx, e.userAddress, domain.StrategyCopy, follow.Address)
	if err != nil {
		slog.Warn("copyengine: trader spend lookup failed", "trader", follow.Address, "err", err)
		return false, false
	}

	decision := domain.Decide(domain.SizingInput{
		Trade:            trade,
		Now:              now,
		AlreadySeen:      seen,
		MaxTradeAge:      e.cfg.Defaults.MaxTradeAge,
		Settings:         settings,
		GlobalDailySpend: globalSpend,
		GlobalDailyLimit: e.cfg.GlobalDailyLimit,
		TraderDailySpend: traderSpend,
	})

	if !decision.Copy {
		if decision.Reason != domain.RejectAlreadySeen {
			_ = e.store.MarkSeen(ctx, fingerprint)
			e.recordEvent(ctx, domain.StrategyCopy, "trade_rejected",
				fmt.Sprintf("rejected %s trade from %s: %s", trade.Side, follow.Address, decision.Reason))
			return false, true
		}
		return false, false
	}

	e.setState(StateExecuting)
	defer e.setState(StatePolling)

	t, err := e.executeCopy(ctx, follow, trade, settings, decision)
	// MarkSeen incluso si la ejecución falla: no queremos reintentar
	// infinitamente el mismo trade upstream.
	if err := e.store.MarkSeen(ctx, fingerprint); err != nil {
		slog.Warn("copyengine: mark seen failed", "fingerprint", fingerprint, "err", err)
	}
	if err != nil {
		slog.Error("copyengine: execute copy failed", "trader", follow.Address, "err", err)
		return false, true
	}

	if e.notifier != nil {
		_ = e.notifier.NotifyTradeCopied(ctx, follow, t)
	}
	copied = t.Status == domain.TradeExecuted || t.Status == domain.TradeDryRun
	return copied, !copied
}

// executeCopy coloca la orden downstream, registra el Trade, actualiza la
// posición y los contadores del trader seguido.
func (e *Engine) executeCopy(ctx context.Context, follow domain.FollowedTrader, trade domain.UpstreamTrade, settings domain.EffectiveSettings, decision domain.SizingDecision) (domain.Trade, error) {
	var placed domain.PlacedOrder
	var fillPrice float64
	var err error
	status := domain.TradeExecuted
	notes := ""

	if e.cfg.DryRun {
		if settings.OrderMode == domain.OrderModeLimit {
			limitPrice, ok := domain.LimitPrice(trade.Price, decision.Side, settings.MaxSlippage)
			if !ok {
				fillPrice = trade.Price
			} else {
				fillPrice = limitPrice
			}
		} else {
			fillPrice = trade.Price
		}
		status = domain.TradeDryRun
	} else if settings.OrderMode == domain.OrderModeLimit {
		limitPrice, ok := domain.LimitPrice(trade.Price, decision.Side, settings.MaxSlippage)
		if !ok {
			status = domain.TradeFailed
			notes = "no reference price for limit order"
		} else {
			size := decision.AmountUSD / limitPrice
			placed, err = e.gateway.PlaceLimitOrder(ctx, e.userAddress, trade.TokenID, limitPrice, size, decision.Side)
			fillPrice = limitPrice
		}
	} else {
		placed, err = e.gateway.PlaceMarketOrder(ctx, e.userAddress, trade.TokenID, decision.AmountUSD, decision.Side)
		fillPrice = trade.Price
	}

	if status != domain.TradeDryRun {
		if err != nil {
			status = domain.TradeFailed
			notes = err.Error()
		} else if notes == "" && placed.CLOBOrderID == "" {
			status = domain.TradeFailed
			notes = "gateway returned no order id"
		}
	}

	t := domain.Trade{
		Timestamp:       e.clock.Now(),
		UserAddress:     e.userAddress,
		Strategy:        domain.StrategyCopy,
		TokenID:         trade.TokenID,
		Side:            decision.Side,
		Amount:          decision.AmountUSD,
		Price:           fillPrice,
		Market:          trade.Market,
		CopiedFrom:      follow.Address,
		OriginalTradeID: trade.ID,
		Status:          status,
		Notes:           notes,
	}

	id, recordErr := e.store.RecordTrade(ctx, t)
	if recordErr != nil {
		return t, fmt.Errorf("copyengine.executeCopy: record trade: %w", recordErr)
	}
	t.ID = id

	if status != domain.TradeExecuted {
		return t, nil
	}

	if err := e.store.IncrementFollowCounters(ctx, e.userAddress, follow.Address, decision.AmountUSD); err != nil {
		slog.Warn("copyengine: increment follow counters failed", "err", err)
	}

	existing, found, err := e.store.GetOpenPosition(ctx, e.userAddress, trade.TokenID)
	if err != nil {
		slog.Warn("copyengine: get open position failed", "err", err)
	}
	var existingPtr *domain.Position
	if found {
		existingPtr = &existing
	}
	newPos := domain.UpsertPosition(existingPtr, e.userAddress, trade.TokenID, trade.Market,
		decision.Side, domain.StrategyCopy, follow.Address, decision.AmountUSD, fillPrice, e.clock.Now())
	if found {
		newPos.ID = existing.ID
	}
	if _, err := e.store.UpsertPosition(ctx, newPos); err != nil {
		slog.Warn("copyengine: upsert position failed", "err", err)
	}

	return t, nil
}

func (e *Engine) recordEvent(ctx context.Context, strategy domain.Strategy, eventType, message string) {
	if err := e.store.RecordEvent(ctx, domain.EngineEvent{
		Timestamp:   e.clock.Now(),
		UserAddress: e.userAddress,
		Strategy:    strategy,
		EventType:   eventType,
		Message:     message,
	}); err != nil {
		slog.Warn("copyengine: record event failed", "err", err)
	}
}
