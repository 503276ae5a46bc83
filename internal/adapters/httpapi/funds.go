package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polybacker/internal/application/fundengine"
	"github.com/alejandrodnm/polybacker/internal/application/supervisor"
	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *Server) handleListFunds(c *gin.Context) {
	funds, err := s.store.ListFunds(c.Request.Context(), true)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"funds": funds})
}

func (s *Server) handleCreateFund(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg(c, http.StatusBadRequest, "fund name is required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		errMsg(c, http.StatusBadRequest, "fund name is required")
		return
	}
	if len(name) > 50 {
		errMsg(c, http.StatusBadRequest, "fund name too long (max 50 chars)")
		return
	}

	id, err := s.store.CreateFund(c.Request.Context(), domain.Fund{
		OwnerAddress: callerAddress(c),
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Active:       true,
		NAVPerShare:  1.0,
	})
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": fmt.Sprintf("fund %q created", name)})
}

func fundID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errMsg(c, http.StatusBadRequest, "invalid fund id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetFund(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}
	fund, found, err := s.store.GetFund(c.Request.Context(), id)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if !found {
		errMsg(c, http.StatusNotFound, "fund not found")
		return
	}
	allocs, err := s.store.ListAllocations(c.Request.Context(), id)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fund":        fund,
		"allocations": allocs,
	})
}

func (s *Server) handleUpdateFund(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		errMsg(c, http.StatusBadRequest, "no valid fields provided")
		return
	}

	fields := make(map[string]any)
	if v, ok := req["name"]; ok {
		if name, ok := v.(string); ok {
			fields["name"] = strings.TrimSpace(name)
		}
	}
	if v, ok := req["description"]; ok {
		if desc, ok := v.(string); ok {
			fields["description"] = strings.TrimSpace(desc)
		}
	}
	if v, ok := req["active"]; ok {
		if active, ok := v.(bool); ok {
			fields["active"] = active
		}
	}
	if len(fields) == 0 {
		errMsg(c, http.StatusBadRequest, "no valid fields provided")
		return
	}

	updated, err := s.store.UpdateFund(c.Request.Context(), id, callerAddress(c), fields)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if !updated {
		errMsg(c, http.StatusNotFound, "fund not found or not owner")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "fund updated"})
}

// allocationWeightTolerance es el margen de tolerancia en la suma de pesos
// activos de un fondo (§8 "Allocation weight sum 1.01 accepted; 1.02
// rejected").
const allocationWeightTolerance = 0.01

func (s *Server) handleSetAllocations(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}

	var req struct {
		Allocations []struct {
			TraderAddress string  `json:"trader_address"`
			Weight        float64 `json:"weight"`
		} `json:"allocations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Allocations) == 0 {
		errMsg(c, http.StatusBadRequest, "allocations list is required")
		return
	}

	total := 0.0
	allocs := make([]domain.FundAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		addr := strings.ToLower(a.TraderAddress)
		if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
			errMsg(c, http.StatusBadRequest, "invalid address: "+a.TraderAddress)
			return
		}
		if a.Weight <= 0 {
			errMsg(c, http.StatusBadRequest, "weight must be > 0 for "+addr)
			return
		}
		total += a.Weight
		allocs = append(allocs, domain.FundAllocation{
			FundID:        id,
			TraderAddress: addr,
			Weight:        a.Weight,
			Active:        true,
		})
	}
	// 1e-9 absorbe el redondeo de la suma en coma flotante (0.5+0.51-1.0 da
	// 0.010000000000000009, que sin margen superaría la tolerancia).
	if diff := total - 1.0; diff > allocationWeightTolerance+1e-9 || diff < -allocationWeightTolerance-1e-9 {
		errMsg(c, http.StatusBadRequest, fmt.Sprintf("weights must sum to 1.0 (got %.4f)", total))
		return
	}

	fund, found, err := s.store.GetFund(c.Request.Context(), id)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if !found || fund.OwnerAddress != callerAddress(c) {
		errMsg(c, http.StatusNotFound, "fund not found or not owner")
		return
	}

	if err := s.store.ReplaceAllocations(c.Request.Context(), id, allocs); err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "allocations updated"})
}

func (s *Server) handleListAllocations(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}
	allocs, err := s.store.ListAllocations(c.Request.Context(), id)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocs})
}

func (s *Server) handleInvestInFund(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		errMsg(c, http.StatusBadRequest, "amount must be positive")
		return
	}

	investment, err := s.store.InvestInFund(c.Request.Context(), id, callerAddress(c), req.Amount)
	if err != nil {
		errJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("invested $%.2f", req.Amount),
		"shares":        investment.Shares,
		"investment_id": investment.ID,
	})
}

func (s *Server) handleFundPerformance(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}
	perf, err := s.store.ListPerformance(c.Request.Context(), id, queryInt(c, "days", 30))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"performance": perf})
}

func (s *Server) handleFundTrades(c *gin.Context) {
	id, ok := fundID(c)
	if !ok {
		return
	}
	_, found, err := s.store.GetFund(c.Request.Context(), id)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if !found {
		errMsg(c, http.StatusNotFound, "fund not found")
		return
	}
	trades, err := s.store.ListFundTrades(c.Request.Context(), id, queryInt(c, "limit", 50))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleFundEngineStart(c *gin.Context) {
	if !s.hasWallet {
		errMsg(c, http.StatusBadRequest, "no wallet credentials configured — trading engines cannot start")
		return
	}
	engine := fundengine.New(s.store, s.gateway, s.notifier, s.clock, s.engines.Fund)
	key := supervisor.Key{Kind: supervisor.KindFund}
	started := s.supervisor.Start(s.baseCtx, key, engine.Run)
	c.JSON(http.StatusOK, gin.H{"started": started})
}

func (s *Server) handleFundEngineStop(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stopped": s.supervisor.Stop(supervisor.Key{Kind: supervisor.KindFund})})
}

func (s *Server) handleMyInvestments(c *gin.Context) {
	investments, err := s.store.ListInvestorInvestments(c.Request.Context(), callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": investments})
}

func (s *Server) handleWithdrawInvestment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errMsg(c, http.StatusBadRequest, "invalid investment id")
		return
	}
	amount, err := s.store.WithdrawFromFund(c.Request.Context(), id, callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("withdrawn $%.2f", amount),
		"amount":  amount,
	})
}
