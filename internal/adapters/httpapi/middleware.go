package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

const ctxAddress = "address"
const ctxRole = "role"

// sessionClaims es el payload del JWT de sesión emitido por
// /api/auth/verify. Sólo cubre lo que el resto de las rutas necesita:
// quién es el caller y su rol — la verificación de la firma SIWE en sí
// ya ocurrió antes de emitir el token (ver ports.SessionVerifier).
type sessionClaims struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) issueToken(address string, role domain.Role) (string, error) {
	now := s.clock.Now()
	claims := sessionClaims{
		Address: address,
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

// authMiddleware valida el Bearer token de toda ruta bajo /api salvo
// /api/health y /api/auth/nonce|verify (registradas fuera del grupo
// protegido en Router). No vuelve a verificar la firma SIWE — sólo que el
// token fue emitido por este servidor y no ha expirado.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			errMsg(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			errMsg(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ctxAddress, claims.Address)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// requireOwner rechaza con 403 a quien no tenga role=owner. Se aplica tras
// authMiddleware, así que ctxRole siempre está presente.
func (s *Server) requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if domain.Role(c.GetString(ctxRole)) != domain.RoleOwner {
			errMsg(c, http.StatusForbidden, "owner role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func callerAddress(c *gin.Context) string {
	return c.GetString(ctxAddress)
}
