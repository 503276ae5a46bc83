package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polybacker/internal/application/supervisor"
)

// handleStatus devuelve el estado de los motores del caller (copy/arb,
// por-usuario) y de los motores globales (fund/positions), junto con la
// configuración por defecto que gobierna nuevos arranques.
func (s *Server) handleStatus(c *gin.Context) {
	address := callerAddress(c)

	copyKey := supervisor.Key{UserAddress: address, Kind: supervisor.KindCopy}
	arbKey := supervisor.Key{UserAddress: address, Kind: supervisor.KindArb}
	fundKey := supervisor.Key{Kind: supervisor.KindFund}
	posKey := supervisor.Key{Kind: supervisor.KindPositions}

	c.JSON(http.StatusOK, gin.H{
		"copy_running":      s.supervisor.IsRunning(copyKey),
		"arb_running":       s.supervisor.IsRunning(arbKey),
		"fund_running":      s.supervisor.IsRunning(fundKey),
		"positions_running": s.supervisor.IsRunning(posKey),
		"has_wallet":        s.hasWallet,
		"defaults": gin.H{
			"copy": s.engines.Copy.Defaults,
			"arb": gin.H{
				"min_profit_pct":    s.engines.Arb.MinProfitPct,
				"trade_amount":      s.engines.Arb.TradeAmount,
				"max_position_size": s.engines.Arb.MaxPositionSize,
			},
			"fund": gin.H{
				"copy_percentage": s.engines.Fund.CopyPercentage,
				"min_copy_size":   s.engines.Fund.MinCopySize,
				"max_copy_size":   s.engines.Fund.MaxCopySize,
			},
		},
	})
}
