package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListWhitelist(c *gin.Context) {
	entries, err := s.store.ListWhitelist(c.Request.Context())
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whitelist": entries})
}

func (s *Server) handleAddWhitelist(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg(c, http.StatusBadRequest, "address is required")
		return
	}
	added, err := s.store.AddWhitelist(c.Request.Context(), strings.ToLower(req.Address), callerAddress(c))
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (s *Server) handleRemoveWhitelist(c *gin.Context) {
	addr := strings.ToLower(c.Param("addr"))
	if err := s.store.RemoveWhitelist(c.Request.Context(), addr); err != nil {
		errMsg(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}
