// Command polybacker arranca el servidor HTTP multi-tenant de copy-trading
// y arbitraje: carga la configuración, abre el almacenamiento, conecta el
// gateway de Polymarket, registra al operador como owner y sirve la API
// hasta recibir SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alejandrodnm/polybacker/config"
	"github.com/alejandrodnm/polybacker/internal/adapters/auth"
	"github.com/alejandrodnm/polybacker/internal/adapters/httpapi"
	"github.com/alejandrodnm/polybacker/internal/adapters/notify"
	"github.com/alejandrodnm/polybacker/internal/adapters/polymarket"
	"github.com/alejandrodnm/polybacker/internal/adapters/storage"
	"github.com/alejandrodnm/polybacker/internal/application/arbengine"
	"github.com/alejandrodnm/polybacker/internal/application/copyengine"
	"github.com/alejandrodnm/polybacker/internal/application/fundengine"
	"github.com/alejandrodnm/polybacker/internal/application/positions"
	"github.com/alejandrodnm/polybacker/internal/application/supervisor"
	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("polybacker starting",
		"config", *configPath,
		"http_addr", cfg.API.HTTPAddr,
		"has_wallet", cfg.HasWalletCredentials(),
	)

	secretKey, err := cfg.Auth.SecretKey()
	if err != nil {
		slog.Error("failed to derive secret key", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(cfg.General.DBPath, secretKey)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "path", cfg.General.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	gateway, ownerAddress := buildGateway(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if ownerAddress != "" {
		if _, err := store.UpsertUser(ctx, ownerAddress, domain.RoleOwner); err != nil {
			slog.Error("failed to register owner user", "err", err)
			os.Exit(1)
		}
		if _, err := store.AddWhitelist(ctx, ownerAddress, "system"); err != nil {
			slog.Warn("failed to whitelist owner", "err", err)
		}
		slog.Info("owner registered", "address", ownerAddress)
	} else {
		slog.Warn("no wallet private key configured — running read-only, no owner registered")
	}

	var notifier ports.Notifier
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		notifier = notify.NewTelegram(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID)
	} else {
		notifier = notify.NewConsole(false)
	}

	sup := supervisor.New()
	verifier := auth.NewSIWEStub()

	engines := httpapi.EngineConfig{
		Copy: copyengine.Config{
			Defaults:         cfg.Copy.UserDefaults(),
			GlobalDailyLimit: cfg.Copy.MaxDailySpend,
			PollInterval:     cfg.General.PollInterval(),
		},
		Arb: arbengine.Config{
			MinProfitPct:    cfg.Arbitrage.MinProfitPct,
			TradeAmount:     cfg.Arbitrage.TradeAmount,
			MaxPositionSize: cfg.General.MaxPositionSize,
			PollInterval:    cfg.General.PollInterval(),
		},
		Fund: fundengine.Config{
			CopyPercentage: cfg.Fund.CopyPercentage,
			MinCopySize:    cfg.Fund.MinCopySize,
			MaxCopySize:    cfg.Fund.MaxCopySize,
			MaxTradeAge:    cfg.Fund.MaxTradeAge(),
			PollInterval:   cfg.General.PollInterval(),
		},
		Pos: positions.Config{
			PollInterval: cfg.General.PollInterval(),
		},
	}

	srv := httpapi.New(
		ctx,
		store,
		gateway,
		notifier,
		verifier,
		sup,
		ports.SystemClock{},
		engines,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpiryHours)*time.Hour,
		cfg.HasWalletCredentials(),
		ownerAddress,
	)

	// El Position Tracker es global y siempre activo — no existe una ruta
	// HTTP que lo arranque/pare, a diferencia de copy/arb/fund (§4.8).
	if gateway != nil {
		tracker := positions.New(store, gateway, ports.SystemClock{}, engines.Pos)
		sup.Start(ctx, supervisor.Key{Kind: supervisor.KindPositions}, tracker.Run)
	}

	httpServer := &http.Server{
		Addr:    cfg.API.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.API.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "err", err)
	}

	sup.StopAll()
	slog.Info("polybacker stopped cleanly")
}

// buildGateway arma el MarketGateway a partir de las credenciales
// disponibles. Sin clave privada configurada el motor sigue sirviendo las
// rutas de sólo lectura (§9 "Private-key dependence"), pero gateway queda
// nil y las de arranque de motores se niegan en la capa HTTP.
func buildGateway(cfg *config.Config) (ports.MarketGateway, string) {
	if !cfg.HasWalletCredentials() {
		return nil, ""
	}

	authClient, err := polymarket.NewAuthClient(cfg.API.CLOBHost, cfg.API.GammaHost, cfg.Wallet.PrivateKey)
	if err != nil {
		slog.Error("failed to build authenticated polymarket client", "err", err)
		os.Exit(1)
	}

	tradingClient, err := polymarket.NewTradingClient(authClient, cfg.Wallet.RPCURL)
	if err != nil {
		slog.Error("failed to build trading client", "err", err)
		os.Exit(1)
	}

	client := polymarket.NewClient(cfg.API.CLOBHost, cfg.API.GammaHost)
	gateway := polymarket.NewGateway(client, tradingClient)

	return gateway, strings.ToLower(authClient.Address())
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
