package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polybacker/internal/application/copyengine"
	"github.com/alejandrodnm/polybacker/internal/application/supervisor"
	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *Server) handleCopyStart(c *gin.Context) {
	if !s.hasWallet {
		errMsg(c, http.StatusBadRequest, "no wallet credentials configured — trading engines cannot start")
		return
	}
	var req struct {
		DryRun bool `json:"dry_run"`
	}
	_ = c.ShouldBindJSON(&req) // body is optional; absent/empty means dry_run=false

	address := callerAddress(c)
	cfg := s.engines.Copy
	cfg.DryRun = req.DryRun
	engine := copyengine.New(address, s.store, s.gateway, s.notifier, s.clock, cfg)
	key := supervisor.Key{UserAddress: address, Kind: supervisor.KindCopy}
	started := s.supervisor.Start(s.baseCtx, key, engine.Run)
	c.JSON(http.StatusOK, gin.H{"started": started, "dry_run": req.DryRun})
}

func (s *Server) handleCopyStop(c *gin.Context) {
	key := supervisor.Key{UserAddress: callerAddress(c), Kind: supervisor.KindCopy}
	c.JSON(http.StatusOK, gin.H{"stopped": s.supervisor.Stop(key)})
}

func (s *Server) handleListTraders(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	traders, err := s.store.ListFollows(c.Request.Context(), callerAddress(c), includeInactive)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"traders": traders})
}

func (s *Server) handleAddTrader(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		Alias   string `json:"alias"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg(c, http.StatusBadRequest, "address is required")
		return
	}
	added, err := s.store.AddFollow(c.Request.Context(), callerAddress(c), strings.ToLower(req.Address), req.Alias)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (s *Server) handleRemoveTrader(c *gin.Context) {
	removed, err := s.store.RemoveFollow(c.Request.Context(), callerAddress(c), strings.ToLower(c.Param("addr")))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		errMsg(c, http.StatusNotFound, "trader not followed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (s *Server) handleUpdateTrader(c *gin.Context) {
	var req struct {
		CopyPercentage *float64 `json:"copy_percentage"`
		MinCopySize    *float64 `json:"min_copy_size"`
		MaxCopySize    *float64 `json:"max_copy_size"`
		MaxDailySpend  *float64 `json:"max_daily_spend"`
		OrderMode      string   `json:"order_mode"`
		MaxSlippage    *float64 `json:"max_slippage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg(c, http.StatusBadRequest, "invalid overrides payload")
		return
	}

	overrides := domain.TraderOverrides{
		CopyPercentage: req.CopyPercentage,
		MinCopySize:    req.MinCopySize,
		MaxCopySize:    req.MaxCopySize,
		MaxDailySpend:  req.MaxDailySpend,
		OrderMode:      domain.OrderMode(req.OrderMode),
		MaxSlippage:    req.MaxSlippage,
	}
	err := s.store.UpdateFollowOverrides(c.Request.Context(), callerAddress(c), strings.ToLower(c.Param("addr")), overrides)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (s *Server) handleCopyTrades(c *gin.Context) {
	filter := domain.TradeFilter{
		UserAddress: callerAddress(c),
		Strategy:    domain.StrategyCopy,
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

func (s *Server) handleCopyStats(c *gin.Context) {
	stats, err := s.store.CopyStats(c.Request.Context(), callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCopyPnL(c *gin.Context) {
	series, err := s.store.PnLSeries(c.Request.Context(), callerAddress(c), domain.StrategyCopy, queryInt(c, "days", 30))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
