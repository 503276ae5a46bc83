// Package positions implementa el Position Tracker: un único worker
// global que refresca el precio actual de todas las posiciones abiertas
// del sistema para mantener el P&L no realizado al día, y puede
// reconstruir el estado de posiciones desde el historial de trades.
package positions

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

// Config son los parámetros del Tracker.
type Config struct {
	PollInterval time.Duration
}

// Tracker actualiza precios de posiciones abiertas vía el MarketGateway.
type Tracker struct {
	store   ports.Store
	gateway ports.MarketGateway
	clock   ports.Clock
	cfg     Config
}

// New crea un Tracker.
func New(store ports.Store, gateway ports.MarketGateway, clock ports.Clock, cfg Config) *Tracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Tracker{store: store, gateway: gateway, clock: clock, cfg: cfg}
}

// Run refresca precios en bucle hasta que ctx se cancele.
func (t *Tracker) Run(ctx context.Context) {
	interval := t.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.RefreshPrices(ctx); err != nil {
			slog.Error("positions: refresh failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RefreshPrices consulta el midpoint actual de todas las posiciones
// abiertas de todos los usuarios y las actualiza en un único batch write.
// Si no hay midpoint disponible, cae al mejor precio de compra — mismo
// fallback que positions.py's update_prices.
func (t *Tracker) RefreshPrices(ctx context.Context) error {
	open, err := t.store.ListOpenPositions(ctx, "")
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	updates := make(map[int64]float64, len(open))
	for _, pos := range open {
		price, ok, err := t.gateway.GetMidpoint(ctx, pos.TokenID)
		if err != nil || !ok || price <= 0 {
			price, ok, err = t.gateway.GetPrice(ctx, pos.TokenID, domain.Buy)
			if err != nil || !ok || price <= 0 {
				continue
			}
		}
		updates[pos.ID] = price
	}

	if len(updates) == 0 {
		return nil
	}
	return t.store.BatchUpdatePrices(ctx, updates)
}
