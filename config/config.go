package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// Config es la configuración completa del motor.
type Config struct {
	Wallet    WalletConfig    `yaml:"wallet"`
	Auth      AuthConfig      `yaml:"auth"`
	Copy      CopyConfig      `yaml:"copy"`
	Arbitrage ArbitrageConfig `yaml:"arbitrage"`
	Fund      FundConfig      `yaml:"fund"`
	General   GeneralConfig   `yaml:"general"`
	API       APIConfig       `yaml:"api"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// WalletConfig son las credenciales del único wallet operador que firma
// todas las órdenes — no hay un wallet por usuario (§6.4).
type WalletConfig struct {
	PrivateKey    string `yaml:"private_key"`
	SignatureType int    `yaml:"signature_type"`
	Funder        string `yaml:"funder"`
	ChainID       int64  `yaml:"chain_id"`
	ProxyURL      string `yaml:"proxy_url"`
	// RPCURL es el endpoint JSON-RPC de Polygon usado para consultas
	// on-chain de balance (ver polymarket.NewTradingClient).
	RPCURL string `yaml:"rpc_url"`
}

// AuthConfig controla la emisión de tokens de sesión del API HTTP.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"`
	// SecretKeyHex cifra api_credentials.api_secret en reposo (AES-256-GCM).
	SecretKeyHex string `yaml:"secret_key_hex"`
}

// SecretKey decodifica SecretKeyHex en la clave AES-256 que espera
// storage.NewSQLiteStorage.
func (a AuthConfig) SecretKey() ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(a.SecretKeyHex)
	if err != nil {
		return key, fmt.Errorf("config: decode secret_key_hex: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("config: secret_key_hex must decode to 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// CopyConfig son los defaults globales del Copy Engine (por-usuario, salvo
// override por trader — ver domain.TraderOverrides).
type CopyConfig struct {
	CopyPercentage  float64 `yaml:"copy_percentage"`
	MinCopySize     float64 `yaml:"min_copy_size"`
	MaxCopySize     float64 `yaml:"max_copy_size"`
	MaxDailySpend   float64 `yaml:"max_daily_spend"`
	MaxTradeAgeSecs int     `yaml:"max_trade_age"`
	OrderMode       string  `yaml:"order_mode"` // market | limit
	MaxSlippage     float64 `yaml:"max_slippage"`
}

// MaxTradeAge como time.Duration.
func (c CopyConfig) MaxTradeAge() time.Duration {
	return time.Duration(c.MaxTradeAgeSecs) * time.Second
}

// UserDefaults traduce la configuración estática a domain.UserDefaults.
func (c CopyConfig) UserDefaults() domain.UserDefaults {
	return domain.UserDefaults{
		CopyPercentage: c.CopyPercentage,
		MinCopySize:    c.MinCopySize,
		MaxCopySize:    c.MaxCopySize,
		MaxDailySpend:  c.MaxDailySpend,
		MaxTradeAge:    c.MaxTradeAge(),
		OrderMode:      domain.OrderMode(c.OrderMode),
		MaxSlippage:    c.MaxSlippage,
	}
}

// ArbitrageConfig controla el Arbitrage Engine.
type ArbitrageConfig struct {
	MinProfitPct float64 `yaml:"min_profit_pct"`
	TradeAmount  float64 `yaml:"trade_amount"`
}

// FundConfig controla el Fund Engine (global, §4.7).
type FundConfig struct {
	CopyPercentage  float64 `yaml:"copy_percentage"`
	MinCopySize     float64 `yaml:"min_copy_size"`
	MaxCopySize     float64 `yaml:"max_copy_size"`
	MaxTradeAgeSecs int     `yaml:"max_trade_age"`
}

// MaxTradeAge como time.Duration.
func (c FundConfig) MaxTradeAge() time.Duration {
	return time.Duration(c.MaxTradeAgeSecs) * time.Second
}

// GeneralConfig son los ajustes que no pertenecen a ningún motor concreto.
type GeneralConfig struct {
	PollIntervalSecs int     `yaml:"poll_interval"`
	AutoExecute      bool    `yaml:"auto_execute"`
	DBPath           string  `yaml:"db_path"`
	MaxPositionSize  float64 `yaml:"max_position_size"`
}

// PollInterval como time.Duration.
func (g GeneralConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSecs) * time.Second
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBHost  string `yaml:"clob_host"`
	GammaHost string `yaml:"gamma_host"`
	DataHost  string `yaml:"data_host"`
	HTTPAddr  string `yaml:"http_addr"` // dirección donde escucha el API HTTP propio
}

// NotifyConfig son las credenciales del notificador de Telegram.
type NotifyConfig struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Los valores del .env sobreescriben los del YAML para las keys
// que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están
// presentes, usando los mismos nombres de clave de spec.md §6.4.
func applyEnvOverrides(cfg *Config) {
	str := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	f64 := func(env string, dst *float64) {
		if v := os.Getenv(env); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = parsed
			}
		}
	}
	i64 := func(env string, dst *int64) {
		if v := os.Getenv(env); v != "" {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = parsed
			}
		}
	}
	i := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
		}
	}
	b := func(env string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}

	str("PRIVATE_KEY", &cfg.Wallet.PrivateKey)
	i("SIGNATURE_TYPE", &cfg.Wallet.SignatureType)
	str("FUNDER", &cfg.Wallet.Funder)
	i64("CHAIN_ID", &cfg.Wallet.ChainID)
	str("PROXY_URL", &cfg.Wallet.ProxyURL)
	str("RPC_URL", &cfg.Wallet.RPCURL)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	i("JWT_EXPIRY_HOURS", &cfg.Auth.JWTExpiryHours)
	str("SECRET_KEY_HEX", &cfg.Auth.SecretKeyHex)

	f64("COPY_PERCENTAGE", &cfg.Copy.CopyPercentage)
	f64("MIN_COPY_SIZE", &cfg.Copy.MinCopySize)
	f64("MAX_COPY_SIZE", &cfg.Copy.MaxCopySize)
	f64("MAX_DAILY_SPEND", &cfg.Copy.MaxDailySpend)
	i("MAX_TRADE_AGE", &cfg.Copy.MaxTradeAgeSecs)
	str("ORDER_MODE", &cfg.Copy.OrderMode)
	f64("MAX_SLIPPAGE", &cfg.Copy.MaxSlippage)

	f64("MIN_PROFIT_PCT", &cfg.Arbitrage.MinProfitPct)
	f64("TRADE_AMOUNT", &cfg.Arbitrage.TradeAmount)

	f64("FUND_COPY_PERCENTAGE", &cfg.Fund.CopyPercentage)
	f64("FUND_MIN_COPY_SIZE", &cfg.Fund.MinCopySize)
	f64("FUND_MAX_COPY_SIZE", &cfg.Fund.MaxCopySize)
	i("FUND_MAX_TRADE_AGE", &cfg.Fund.MaxTradeAgeSecs)

	i("POLL_INTERVAL", &cfg.General.PollIntervalSecs)
	b("AUTO_EXECUTE", &cfg.General.AutoExecute)
	str("DB_PATH", &cfg.General.DBPath)
	f64("MAX_POSITION_SIZE", &cfg.General.MaxPositionSize)

	str("CLOB_HOST", &cfg.API.CLOBHost)
	str("GAMMA_HOST", &cfg.API.GammaHost)
	str("DATA_HOST", &cfg.API.DataHost)
	str("HTTP_ADDR", &cfg.API.HTTPAddr)

	str("TELEGRAM_BOT_TOKEN", &cfg.Notify.TelegramBotToken)
	str("TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
}

// setDefaults asegura que los valores requeridos tengan valores sensatos,
// calcados de los defaults documentados por original_source/config.py.
func setDefaults(cfg *Config) {
	if cfg.Wallet.ChainID == 0 {
		cfg.Wallet.ChainID = 137 // Polygon mainnet
	}
	if cfg.Wallet.RPCURL == "" {
		cfg.Wallet.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Auth.JWTExpiryHours <= 0 {
		cfg.Auth.JWTExpiryHours = 24
	}
	if cfg.Copy.CopyPercentage <= 0 {
		cfg.Copy.CopyPercentage = 0.10
	}
	if cfg.Copy.MinCopySize <= 0 {
		cfg.Copy.MinCopySize = 5
	}
	if cfg.Copy.MaxCopySize <= 0 {
		cfg.Copy.MaxCopySize = 100
	}
	if cfg.Copy.MaxDailySpend <= 0 {
		cfg.Copy.MaxDailySpend = 500
	}
	if cfg.Copy.MaxTradeAgeSecs <= 0 {
		cfg.Copy.MaxTradeAgeSecs = 300
	}
	if cfg.Copy.OrderMode == "" {
		cfg.Copy.OrderMode = string(domain.OrderModeLimit)
	}
	if cfg.Copy.MaxSlippage <= 0 {
		cfg.Copy.MaxSlippage = 0.02
	}
	if cfg.Arbitrage.MinProfitPct <= 0 {
		cfg.Arbitrage.MinProfitPct = 1.0
	}
	if cfg.Arbitrage.TradeAmount <= 0 {
		cfg.Arbitrage.TradeAmount = 50
	}
	if cfg.Fund.CopyPercentage <= 0 {
		cfg.Fund.CopyPercentage = cfg.Copy.CopyPercentage
	}
	if cfg.Fund.MinCopySize <= 0 {
		cfg.Fund.MinCopySize = cfg.Copy.MinCopySize
	}
	if cfg.Fund.MaxCopySize <= 0 {
		cfg.Fund.MaxCopySize = cfg.Copy.MaxCopySize
	}
	if cfg.Fund.MaxTradeAgeSecs <= 0 {
		cfg.Fund.MaxTradeAgeSecs = cfg.Copy.MaxTradeAgeSecs
	}
	if cfg.General.PollIntervalSecs <= 0 {
		cfg.General.PollIntervalSecs = 15
	}
	if cfg.General.DBPath == "" {
		cfg.General.DBPath = "polybacker.db"
	}
	if cfg.General.MaxPositionSize <= 0 {
		cfg.General.MaxPositionSize = 1000
	}
	if cfg.API.CLOBHost == "" {
		cfg.API.CLOBHost = "https://clob.polymarket.com"
	}
	if cfg.API.GammaHost == "" {
		cfg.API.GammaHost = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataHost == "" {
		cfg.API.DataHost = "https://data-api.polymarket.com"
	}
	if cfg.API.HTTPAddr == "" {
		cfg.API.HTTPAddr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// HasWalletCredentials indica si hay suficientes credenciales configuradas
// para firmar órdenes. Los motores de trading y arbitraje deben negarse a
// arrancar si esto es false (§9 "Private-key dependence"); los endpoints de
// sólo lectura no lo requieren.
func (c *Config) HasWalletCredentials() bool {
	return c.Wallet.PrivateKey != ""
}
