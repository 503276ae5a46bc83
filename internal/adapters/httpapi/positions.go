package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *Server) handleListPositions(c *gin.Context) {
	open, err := s.store.ListOpenPositions(c.Request.Context(), callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": open})
}

func (s *Server) handlePositionsSummary(c *gin.Context) {
	open, err := s.store.ListOpenPositions(c.Request.Context(), callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}

	var costBasis, unrealized float64
	for _, p := range open {
		costBasis += p.CostBasis
		unrealized += p.UnrealizedPnL
	}
	c.JSON(http.StatusOK, gin.H{
		"open_positions": len(open),
		"cost_basis":     costBasis,
		"unrealized_pnl": unrealized,
	})
}

func (s *Server) handleClosedPositions(c *gin.Context) {
	// El Store no tiene un listado de posiciones cerradas: esta ruta
	// devuelve los trades ejecutados del caller (vía ListTrades), no filas
	// de posiciones con status closed.
	filter := domain.TradeFilter{
		UserAddress: callerAddress(c),
		Status:      domain.TradeExecuted,
		Limit:       queryInt(c, "limit", 50),
		Offset:      queryInt(c, "offset", 0),
	}
	trades, err := s.store.ListTrades(c.Request.Context(), filter)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// handleCloseAllPositions coloca órdenes FOK de mercado para flatten todas
// las posiciones abiertas del caller: SELL sobre LONG, BUY sobre SHORT.
func (s *Server) handleCloseAllPositions(c *gin.Context) {
	if !s.hasWallet {
		errMsg(c, http.StatusBadRequest, "no wallet credentials configured")
		return
	}
	ctx := c.Request.Context()
	address := callerAddress(c)

	open, err := s.store.ListOpenPositions(ctx, address)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if len(open) == 0 {
		errMsg(c, http.StatusBadRequest, "no open positions to close")
		return
	}

	closed, failed := 0, 0
	var errs []string
	for _, p := range open {
		if p.Size <= 0 {
			continue
		}
		closeSide := domain.Sell
		if p.Side == domain.PositionShort {
			closeSide = domain.Buy
		}
		price := p.CurrentPrice
		if price < 0.01 {
			price = 0.01
		}
		amount := p.Size * price
		if amount < 0.01 {
			amount = 0.01
		}

		if _, err := s.gateway.PlaceMarketOrder(ctx, address, p.TokenID, amount, closeSide); err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("%s: %v", p.Market, err))
			continue
		}
		if err := s.store.ClosePosition(ctx, p.ID); err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("%s: %v", p.Market, err))
			continue
		}
		closed++
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("closed %d/%d positions", closed, len(open)),
		"closed":  closed,
		"failed":  failed,
		"errors":  errs,
	})
}

// resolvedHigh/resolvedLow son los umbrales de precio que indican que un
// mercado binario ya liquidó — Polymarket redime automáticamente a la
// wallet, así que aquí sólo se limpia el tracker local.
const (
	resolvedHigh = 0.95
	resolvedLow  = 0.05
)

func (s *Server) handleRedeemAllPositions(c *gin.Context) {
	ctx := c.Request.Context()
	address := callerAddress(c)

	open, err := s.store.ListOpenPositions(ctx, address)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if len(open) == 0 {
		errMsg(c, http.StatusBadRequest, "no open positions")
		return
	}

	redeemed, skipped := 0, 0
	for _, p := range open {
		resolved := p.CurrentPrice >= resolvedHigh || p.CurrentPrice <= resolvedLow
		if !resolved {
			skipped++
			continue
		}
		if err := s.store.ClosePosition(ctx, p.ID); err != nil {
			errJSON(c, http.StatusInternalServerError, err)
			return
		}
		redeemed++
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  fmt.Sprintf("redeemed %d positions (%d still active)", redeemed, skipped),
		"redeemed": redeemed,
		"skipped":  skipped,
	})
}
