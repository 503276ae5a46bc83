package polymarket

// gateway.go — composición de Client + TradingClient detrás de
// ports.MarketGateway. El motor opera una única wallet configurada en
// arranque (config `privateKey`/`funder`/`signatureType`) en nombre de todos
// los usuarios — userAddress en las firmas de PlaceMarketOrder/PlaceLimitOrder
// identifica a quién pertenece el trade en el registro interno, no una clave
// de firma distinta.

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

var _ ports.MarketGateway = (*Gateway)(nil)

// Gateway implementa ports.MarketGateway sobre la CLOB, Gamma y Data APIs
// de Polymarket.
type Gateway struct {
	*Client
	trading *TradingClient
}

// NewGateway combina un Client de lectura pública con un TradingClient
// autenticado para escritura.
func NewGateway(client *Client, trading *TradingClient) *Gateway {
	return &Gateway{Client: client, trading: trading}
}

// PlaceMarketOrder coloca una orden FOK por un monto en USD.
func (g *Gateway) PlaceMarketOrder(ctx context.Context, userAddress, tokenID string, usdAmount float64, side domain.Side) (domain.PlacedOrder, error) {
	price, ok, err := g.GetPrice(ctx, tokenID, side)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place market order: %w", err)
	}
	if !ok {
		return domain.PlacedOrder{}, fmt.Errorf("place market order: no liquidity for token %s", tokenID)
	}

	return g.trading.PlaceOrder(ctx, domain.PlaceOrderRequest{
		TokenID:   tokenID,
		Side:      side,
		TIF:       domain.TIFFillOrKill,
		Price:     price,
		AmountUSD: usdAmount,
	})
}

// PlaceLimitOrder coloca una orden GTC a un precio límite.
func (g *Gateway) PlaceLimitOrder(ctx context.Context, userAddress, tokenID string, limitPrice, sizeShares float64, side domain.Side) (domain.PlacedOrder, error) {
	return g.trading.PlaceOrder(ctx, domain.PlaceOrderRequest{
		TokenID: tokenID,
		Side:    side,
		TIF:     domain.TIFGoodTillCancelled,
		Price:   limitPrice,
		Size:    sizeShares,
	})
}

// GetBalance devuelve el balance de USDC.e de la wallet operadora. Todos los
// usuarios comparten la misma wallet, así que userAddress no cambia el
// resultado — se mantiene en la firma por simetría con el resto del puerto
// y para una futura migración a wallets por usuario.
func (g *Gateway) GetBalance(ctx context.Context, userAddress string) (float64, error) {
	return g.trading.GetBalance(ctx)
}
