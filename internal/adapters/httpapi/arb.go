package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polybacker/internal/application/arbengine"
	"github.com/alejandrodnm/polybacker/internal/application/supervisor"
	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *Server) handleArbStart(c *gin.Context) {
	if !s.hasWallet {
		errMsg(c, http.StatusBadRequest, "no wallet credentials configured — trading engines cannot start")
		return
	}
	address := callerAddress(c)
	engine := arbengine.New(address, s.store, s.gateway, s.notifier, s.clock, s.engines.Arb)
	key := supervisor.Key{UserAddress: address, Kind: supervisor.KindArb}
	started := s.supervisor.Start(s.baseCtx, key, engine.Run)
	c.JSON(http.StatusOK, gin.H{"started": started})
}

func (s *Server) handleArbStop(c *gin.Context) {
	key := supervisor.Key{UserAddress: callerAddress(c), Kind: supervisor.KindArb}
	c.JSON(http.StatusOK, gin.H{"stopped": s.supervisor.Stop(key)})
}

func (s *Server) handleArbTrades(c *gin.Context) {
	filter := domain.TradeFilter{
		UserAddress: callerAddress(c),
		Strategy:    domain.StrategyArbitrage,
		Status:      domain.TradeStatus(c.Query("status")),
		Search:      c.Query("search"),
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

func (s *Server) handleArbStats(c *gin.Context) {
	stats, err := s.store.ArbStats(c.Request.Context(), callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleArbPnL(c *gin.Context) {
	series, err := s.store.PnLSeries(c.Request.Context(), callerAddress(c), domain.StrategyArbitrage, queryInt(c, "days", 30))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}
