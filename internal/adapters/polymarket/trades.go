package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

const (
	dataAPIBase    = "https://data-api.polymarket.com"
	tradesPerPage  = 500
	tradesMaxPages = 2
)

// GetTraderTrades obtiene los trades más recientes de una wallet usando la
// Data API pública (?user=). Best-effort: en error de transporte devuelve
// slice vacío en lugar de fallar ruidosamente — un trader seguido
// momentáneamente inalcanzable no debe tumbar el ciclo de polling.
func (c *Client) GetTraderTrades(ctx context.Context, address string, limit int) ([]domain.UpstreamTrade, error) {
	if limit <= 0 || limit > tradesPerPage {
		limit = tradesPerPage
	}

	var all []domain.UpstreamTrade
	for page := 0; page < tradesMaxPages && len(all) < limit; page++ {
		offset := page * tradesPerPage
		url := fmt.Sprintf("%s/trades?user=%s&limit=%d&offset=%d", dataAPIBase, address, tradesPerPage, offset)

		var resp []map[string]any
		if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
			slog.Warn("get trader trades failed, returning partial results",
				"trader", address, "err", err)
			break
		}
		if len(resp) == 0 {
			break
		}

		for _, raw := range resp {
			all = append(all, domain.CanonicalizeUpstreamTrade(raw))
		}

		if len(resp) < tradesPerPage {
			break
		}
	}

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
