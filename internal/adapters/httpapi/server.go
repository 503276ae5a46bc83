// Package httpapi expone el motor vía una API JSON sobre gin
// (github.com/gin-gonic/gin, igual que poorman-SynapseStrike/SynapseStrike/api)
// y un canal WebSocket de estado sobre gorilla/websocket. No existe en el
// proyecto original — allí server.py sirve las mismas rutas con Flask —
// este paquete es su traducción a handlers de gin sobre el mismo Store,
// MarketGateway y Supervisor que usan los workers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polybacker/internal/application/arbengine"
	"github.com/alejandrodnm/polybacker/internal/application/copyengine"
	"github.com/alejandrodnm/polybacker/internal/application/fundengine"
	"github.com/alejandrodnm/polybacker/internal/application/positions"
	"github.com/alejandrodnm/polybacker/internal/application/supervisor"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

// Version se estampa en /api/health; cmd/polybacker la fija en build time
// si se desea, por defecto queda en "dev".
var Version = "dev"

// EngineConfig agrupa la configuración por defecto que cada arranque de
// motor necesita — resuelta una vez desde config.Config en cmd/polybacker.
type EngineConfig struct {
	Copy copyengine.Config
	Arb  arbengine.Config
	Fund fundengine.Config
	Pos  positions.Config
}

// Server agrupa las dependencias de todos los handlers.
type Server struct {
	baseCtx    context.Context
	store      ports.Store
	gateway    ports.MarketGateway
	notifier   ports.Notifier
	verifier   ports.SessionVerifier
	supervisor *supervisor.Supervisor
	clock      ports.Clock
	engines    EngineConfig

	jwtSecret    string
	jwtExpiry    time.Duration
	hasWallet    bool
	ownerAddress string
}

// New crea el Server. baseCtx es el context de vida del proceso (el mismo
// que cancela cmd/polybacker en el shutdown) — los workers arrancados vía
// /api/*/start cuelgan de él, no del context de la petición HTTP que los
// arrancó. hasWallet indica si el motor tiene credenciales de wallet
// configuradas — si es false, los endpoints de arranque de copy/arb/fund
// se niegan con 400 (§9 "Private-key dependence"), pero los de sólo
// lectura siguen funcionando. ownerAddress es la dirección derivada de la
// clave privada del operador al arrancar (cmd/polybacker); quien verifique
// sesión con esa dirección recibe role=owner automáticamente, igual que
// _derive_owner_address en el original.
func New(
	baseCtx context.Context,
	store ports.Store,
	gateway ports.MarketGateway,
	notifier ports.Notifier,
	verifier ports.SessionVerifier,
	sup *supervisor.Supervisor,
	clock ports.Clock,
	engines EngineConfig,
	jwtSecret string,
	jwtExpiry time.Duration,
	hasWallet bool,
	ownerAddress string,
) *Server {
	return &Server{
		baseCtx:      baseCtx,
		store:        store,
		gateway:      gateway,
		notifier:     notifier,
		verifier:     verifier,
		supervisor:   sup,
		clock:        clock,
		engines:      engines,
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
		hasWallet:    hasWallet,
		ownerAddress: strings.ToLower(ownerAddress),
	}
}

// Router construye el *gin.Engine con todas las rutas de §6.1 registradas.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), slogLogger())

	r.GET("/api/health", s.handleHealth)
	r.POST("/api/auth/nonce", s.handleAuthNonce)
	r.POST("/api/auth/verify", s.handleAuthVerify)

	api := r.Group("/api")
	api.Use(s.authMiddleware())
	{
		api.GET("/auth/session", s.handleAuthSession)
		api.GET("/status", s.handleStatus)

		api.POST("/copy/start", s.handleCopyStart)
		api.POST("/copy/stop", s.handleCopyStop)
		api.GET("/copy/traders", s.handleListTraders)
		api.POST("/copy/traders", s.handleAddTrader)
		api.DELETE("/copy/traders/:addr", s.handleRemoveTrader)
		api.PATCH("/copy/traders/:addr", s.handleUpdateTrader)
		api.GET("/copy/trades", s.handleCopyTrades)
		api.GET("/copy/stats", s.handleCopyStats)
		api.GET("/copy/pnl", s.handleCopyPnL)

		api.POST("/arb/start", s.handleArbStart)
		api.POST("/arb/stop", s.handleArbStop)
		api.GET("/arb/trades", s.handleArbTrades)
		api.GET("/arb/stats", s.handleArbStats)
		api.GET("/arb/pnl", s.handleArbPnL)

		api.GET("/positions", s.handleListPositions)
		api.GET("/positions/summary", s.handlePositionsSummary)
		api.GET("/positions/closed", s.handleClosedPositions)
		api.POST("/positions/close-all", s.handleCloseAllPositions)
		api.POST("/positions/redeem-all", s.handleRedeemAllPositions)

		api.GET("/funds", s.handleListFunds)
		api.POST("/funds", s.requireOwner(), s.handleCreateFund)
		api.GET("/funds/my-investments", s.handleMyInvestments)
		api.POST("/funds/engine/start", s.requireOwner(), s.handleFundEngineStart)
		api.POST("/funds/engine/stop", s.requireOwner(), s.handleFundEngineStop)
		api.POST("/funds/investments/:id/withdraw", s.handleWithdrawInvestment)
		api.GET("/funds/:id", s.handleGetFund)
		api.PATCH("/funds/:id", s.requireOwner(), s.handleUpdateFund)
		api.PUT("/funds/:id/allocations", s.requireOwner(), s.handleSetAllocations)
		api.GET("/funds/:id/allocations", s.handleListAllocations)
		api.POST("/funds/:id/invest", s.handleInvestInFund)
		api.GET("/funds/:id/performance", s.handleFundPerformance)
		api.GET("/funds/:id/trades", s.handleFundTrades)

		whitelist := api.Group("/whitelist")
		whitelist.Use(s.requireOwner())
		{
			whitelist.GET("", s.handleListWhitelist)
			whitelist.POST("", s.handleAddWhitelist)
			whitelist.DELETE("/:addr", s.handleRemoveWhitelist)
		}
	}

	// El handshake WebSocket se autentica aparte: un navegador no puede
	// fijar el header Authorization en la petición de upgrade, así que el
	// token viaja como query param (§6.2 "auth via initial token
	// handshake"); conexiones rechazadas se cierran de inmediato.
	r.GET("/ws/status", s.handleWSStatus)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   Version,
		"timestamp": s.clock.Now().UTC(),
	})
}

func errJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func errMsg(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// slogLogger sustituye el logger por defecto de gin por log/slog, como el
// resto del motor (cmd/polybacker/main.go configura slog como único sumidero
// de logs del proceso).
func slogLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
