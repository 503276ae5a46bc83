package polymarket

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// GetPrice devuelve el mejor precio disponible para side de un token. BUY
// mira el mejor ask (lo que costaría comprar); SELL mira el mejor bid (lo
// que se recibiría al vender). Devuelve (0, false, nil) si el book no tiene
// liquidez de ese lado.
func (c *Client) GetPrice(ctx context.Context, tokenID string, side domain.Side) (float64, bool, error) {
	books, err := c.FetchOrderBooks(ctx, []string{tokenID})
	if err != nil {
		return 0, false, fmt.Errorf("get price: %w", err)
	}
	book, ok := books[tokenID]
	if !ok {
		return 0, false, nil
	}

	var price float64
	if side == domain.Sell {
		price = book.BestBid()
	} else {
		price = book.BestAsk()
	}
	if price <= 0 {
		return 0, false, nil
	}
	return price, true, nil
}

// GetMidpoint devuelve el punto medio bid/ask de un token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (float64, bool, error) {
	books, err := c.FetchOrderBooks(ctx, []string{tokenID})
	if err != nil {
		return 0, false, fmt.Errorf("get midpoint: %w", err)
	}
	book, ok := books[tokenID]
	if !ok {
		return 0, false, nil
	}
	mid := book.Midpoint()
	if mid <= 0 {
		return 0, false, nil
	}
	return mid, true, nil
}
