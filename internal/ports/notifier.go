package ports

import (
	"context"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// Notifier presenta eventos de los motores al usuario (consola, Telegram).
type Notifier interface {
	// NotifyEvent entrega un EngineEvent recién registrado.
	NotifyEvent(ctx context.Context, e domain.EngineEvent) error

	// NotifyTradeDetected avisa de un trade detectado en un trader seguido,
	// antes de decidir si se copia.
	NotifyTradeDetected(ctx context.Context, trader domain.FollowedTrader, trade domain.UpstreamTrade) error

	// NotifyTradeCopied avisa del resultado de una copia ejecutada.
	NotifyTradeCopied(ctx context.Context, trader domain.FollowedTrader, trade domain.Trade) error
}
