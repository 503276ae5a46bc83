package domain

import (
	"math"
	"time"
)

// OrderMode selecciona cómo se ejecuta un trade copiado.
type OrderMode string

const (
	OrderModeMarket OrderMode = "market" // FOK, fill inmediato o cancelación
	OrderModeLimit  OrderMode = "limit"  // GTC al precio del trader + slippage
)

// TraderOverrides son los ajustes por-trader que, si están definidos,
// reemplazan los valores por defecto del usuario. Un puntero nil (o un
// OrderMode vacío) significa "usar el default".
type TraderOverrides struct {
	CopyPercentage *float64
	MinCopySize    *float64
	MaxCopySize    *float64
	MaxDailySpend  *float64
	OrderMode      OrderMode
	MaxSlippage    *float64
}

// UserDefaults son los ajustes globales de copy trading de un usuario.
type UserDefaults struct {
	CopyPercentage float64
	MinCopySize    float64
	MaxCopySize    float64
	MaxDailySpend  float64
	MaxTradeAge    time.Duration
	OrderMode      OrderMode
	MaxSlippage    float64
}

// EffectiveSettings son los ajustes resueltos (override si existe, si no el
// default del usuario) que gobiernan cómo se copia un trade de un trader
// concreto.
type EffectiveSettings struct {
	CopyPercentage float64
	MinCopySize    float64
	MaxCopySize    float64
	MaxDailySpend  float64
	OrderMode      OrderMode
	MaxSlippage    float64
}

// ResolveSettings combina los defaults del usuario con los overrides del
// trader: cada campo usa el override si está presente, si no cae al default.
func ResolveSettings(defaults UserDefaults, overrides TraderOverrides) EffectiveSettings {
	es := EffectiveSettings{
		CopyPercentage: defaults.CopyPercentage,
		MinCopySize:    defaults.MinCopySize,
		MaxCopySize:    defaults.MaxCopySize,
		MaxDailySpend:  defaults.MaxDailySpend,
		OrderMode:      defaults.OrderMode,
		MaxSlippage:    defaults.MaxSlippage,
	}
	if overrides.CopyPercentage != nil {
		es.CopyPercentage = *overrides.CopyPercentage
	}
	if overrides.MinCopySize != nil {
		es.MinCopySize = *overrides.MinCopySize
	}
	if overrides.MaxCopySize != nil {
		es.MaxCopySize = *overrides.MaxCopySize
	}
	if overrides.MaxDailySpend != nil {
		es.MaxDailySpend = *overrides.MaxDailySpend
	}
	if overrides.OrderMode != "" {
		es.OrderMode = overrides.OrderMode
	}
	if overrides.MaxSlippage != nil {
		es.MaxSlippage = *overrides.MaxSlippage
	}
	return es
}

// SizingInput agrupa todo lo que SizingEngine.Decide necesita para evaluar
// un trade candidato a copia. GlobalDailySpend/TraderDailySpend son el
// gasto ya ejecutado hoy, consultado por el caller antes de invocar Decide.
type SizingInput struct {
	Trade             UpstreamTrade
	Now               time.Time
	AlreadySeen       bool
	MaxTradeAge       time.Duration
	Settings          EffectiveSettings
	GlobalDailySpend  float64
	GlobalDailyLimit  float64
	TraderDailySpend  float64
}

// SizingDecision es el resultado de evaluar un trade candidato.
type SizingDecision struct {
	Copy       bool
	Reason     RejectReason
	AmountUSD  float64 // tamaño a copiar en USD, sólo válido si Copy == true
	Side       Side
}

// Decide implementa el pipeline de decisión del Sizing Engine: comprueba
// dedup, antigüedad, validez del token/side, y límites diarios globales y
// por-trader, en ese orden — el primer check que falla determina el
// RejectReason. Si todos pasan, calcula el tamaño de copia.
func Decide(in SizingInput) SizingDecision {
	if in.AlreadySeen {
		return SizingDecision{Reason: RejectAlreadySeen}
	}

	if !in.Trade.Timestamp.IsZero() {
		age := in.Now.Sub(in.Trade.Timestamp)
		if age > in.MaxTradeAge {
			return SizingDecision{Reason: RejectTooOld}
		}
	}

	if in.Trade.TokenID == "" {
		return SizingDecision{Reason: RejectNoToken}
	}

	side, ok := ParseSide(in.Trade.Side)
	if !ok {
		return SizingDecision{Reason: RejectInvalidSide}
	}

	if in.GlobalDailySpend >= in.GlobalDailyLimit {
		return SizingDecision{Reason: RejectGlobalDailyLimit}
	}

	if in.TraderDailySpend >= in.Settings.MaxDailySpend {
		return SizingDecision{Reason: RejectTraderDailyLimit}
	}

	amount := calculateCopySize(in)
	if amount <= 0 {
		return SizingDecision{Reason: RejectZeroSize}
	}

	return SizingDecision{Copy: true, Reason: RejectNone, AmountUSD: amount, Side: side}
}

// calculateCopySize reproduce la fórmula del motor original: porcentaje del
// trade original acotado por min/max por-trader, y luego acotado de nuevo
// por lo que queda del presupuesto diario (global y por-trader).
func calculateCopySize(in SizingInput) float64 {
	originalUSD := in.Trade.USD()
	if originalUSD < 0 {
		originalUSD = 0
	}

	size := originalUSD * in.Settings.CopyPercentage
	size = math.Max(size, in.Settings.MinCopySize)
	size = math.Min(size, in.Settings.MaxCopySize)

	globalRemaining := in.GlobalDailyLimit - in.GlobalDailySpend
	if size > globalRemaining {
		size = globalRemaining
	}

	traderRemaining := in.Settings.MaxDailySpend - in.TraderDailySpend
	if size > traderRemaining {
		size = traderRemaining
	}

	if size < 0 {
		size = 0
	}
	return round2(size)
}

// LimitPrice calcula el precio límite para una orden GTC: el precio del
// trader ampliado (BUY) o reducido (SELL) por el slippage permitido, y
// acotado al rango válido de precios de Polymarket (0.01–0.99). Devuelve
// (0, false) si el trader no reportó un precio.
func LimitPrice(traderPrice float64, side Side, maxSlippage float64) (float64, bool) {
	if traderPrice <= 0 {
		return 0, false
	}
	var limit float64
	if side == Buy {
		limit = traderPrice * (1.0 + maxSlippage)
		limit = math.Min(round4(limit), 0.99)
	} else {
		limit = traderPrice * (1.0 - maxSlippage)
		limit = math.Max(round4(limit), 0.01)
	}
	return limit, true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
