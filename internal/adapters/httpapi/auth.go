package httpapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

// nonceLine extrae el campo "Nonce: <valor>" de un mensaje EIP-4361 —
// el formato estándar que produce cualquier cliente SIWE.
var nonceLine = regexp.MustCompile(`(?m)^Nonce:\s*(\S+)$`)

func (s *Server) handleAuthNonce(c *gin.Context) {
	nonce := uuid.New().String()
	if err := s.store.CreateNonce(c.Request.Context(), nonce); err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (s *Server) handleAuthVerify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg(c, http.StatusBadRequest, "missing message or signature")
		return
	}

	address, err := s.verifier.Verify(c.Request.Context(), ports.SIWEMessage{
		Message:   req.Message,
		Signature: req.Signature,
	})
	if err != nil {
		errMsg(c, http.StatusUnauthorized, "siwe verification failed: "+err.Error())
		return
	}
	address = strings.ToLower(address)

	match := nonceLine.FindStringSubmatch(req.Message)
	if match == nil {
		errMsg(c, http.StatusBadRequest, "message has no nonce field")
		return
	}
	ok, err := s.store.ConsumeNonce(c.Request.Context(), match[1], address)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		errMsg(c, http.StatusUnauthorized, "invalid or expired nonce")
		return
	}

	isOwner := s.ownerAddress != "" && address == s.ownerAddress
	role := domain.RoleUser
	if isOwner {
		role = domain.RoleOwner
	}

	if !isOwner {
		whitelisted, err := s.store.IsWhitelisted(c.Request.Context(), address)
		if err != nil {
			errJSON(c, http.StatusInternalServerError, err)
			return
		}
		if !whitelisted {
			errMsg(c, http.StatusForbidden, "wallet not whitelisted — contact the operator for access")
			return
		}
	}

	user, err := s.store.UpsertUser(c.Request.Context(), address, role)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}

	token, err := s.issueToken(user.Address, user.Role)
	if err != nil {
		errJSON(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"address": user.Address,
		"role":    user.Role,
	})
}

func (s *Server) handleAuthSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"address":       callerAddress(c),
		"role":          c.GetString(ctxRole),
	})
}
