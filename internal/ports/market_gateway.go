package ports

import (
	"context"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// MarketGateway es la única vía de acceso a Polymarket: lectura de trades
// de traders seguidos, precios, orderbooks, y colocación de órdenes.
// Los adapters implementan autenticación, rate limiting por host, retries
// con backoff, y mapean errores de upstream a la taxonomía en domain/errors.go.
type MarketGateway interface {
	// GetTraderTrades devuelve los últimos trades de una wallet, best-effort:
	// en error de transporte devuelve slice vacío, nunca falla ruidosamente.
	GetTraderTrades(ctx context.Context, address string, limit int) ([]domain.UpstreamTrade, error)

	// GetPrice devuelve el mejor precio para side ("BUY"/"SELL") de un token,
	// o (0, false) si no hay liquidez. Precios < 0.001 o > 0.999 indican un
	// mercado ya resuelto.
	GetPrice(ctx context.Context, tokenID string, side domain.Side) (float64, bool, error)

	// GetMidpoint devuelve el punto medio bid/ask de un token.
	GetMidpoint(ctx context.Context, tokenID string) (float64, bool, error)

	// FetchOrderBooks devuelve los orderbooks completos para los token_ids
	// dados, en un único batch request.
	FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error)

	// FetchSamplingMarkets devuelve mercados binarios activos candidatos
	// para el descubrimiento de pares YES/NO de arbitraje.
	FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error)

	// PlaceMarketOrder coloca una orden FOK por un monto en USD: o se
	// llena por completo o se anula.
	PlaceMarketOrder(ctx context.Context, userAddress, tokenID string, usdAmount float64, side domain.Side) (domain.PlacedOrder, error)

	// PlaceLimitOrder coloca una orden GTC a un precio límite.
	PlaceLimitOrder(ctx context.Context, userAddress, tokenID string, limitPrice, sizeShares float64, side domain.Side) (domain.PlacedOrder, error)

	// GetBalance devuelve el balance de USDC.e disponible del usuario.
	GetBalance(ctx context.Context, userAddress string) (float64, error)
}

// CredentialSource resuelve las credenciales L1/L2 a usar para un usuario:
// las propias del usuario si las tiene guardadas, si no las del servidor.
type CredentialSource interface {
	CredentialsFor(ctx context.Context, userAddress string) (domain.APICredentials, error)
}
