package positions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybacker/internal/adapters/storage"
	"github.com/alejandrodnm/polybacker/internal/domain"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeGateway struct {
	midpoints map[string]float64
}

func (g *fakeGateway) GetTraderTrades(ctx context.Context, address string, limit int) ([]domain.UpstreamTrade, error) {
	return nil, nil
}
func (g *fakeGateway) GetPrice(ctx context.Context, tokenID string, side domain.Side) (float64, bool, error) {
	return 0.6, true, nil
}
func (g *fakeGateway) GetMidpoint(ctx context.Context, tokenID string) (float64, bool, error) {
	price, ok := g.midpoints[tokenID]
	return price, ok, nil
}
func (g *fakeGateway) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	return nil, nil
}
func (g *fakeGateway) FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error) {
	return nil, nil
}
func (g *fakeGateway) PlaceMarketOrder(ctx context.Context, userAddress, tokenID string, usdAmount float64, side domain.Side) (domain.PlacedOrder, error) {
	return domain.PlacedOrder{}, nil
}
func (g *fakeGateway) PlaceLimitOrder(ctx context.Context, userAddress, tokenID string, limitPrice, sizeShares float64, side domain.Side) (domain.PlacedOrder, error) {
	return domain.PlacedOrder{}, nil
}
func (g *fakeGateway) GetBalance(ctx context.Context, userAddress string) (float64, error) {
	return 0, nil
}

func TestTracker_RefreshesOpenPositionsViaMidpoint(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	st, err := storage.NewSQLiteStorage(t.TempDir()+"/test.db", key)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	pos := domain.UpsertPosition(nil, "0xuser", "token-yes", "market", domain.Buy, domain.StrategyCopy, "", 100, 0.5, now)
	_, err = st.UpsertPosition(ctx, pos)
	require.NoError(t, err)

	gw := &fakeGateway{midpoints: map[string]float64{"token-yes": 0.72}}
	tracker := New(st, gw, fakeClock{now: now}, Config{PollInterval: time.Second})

	require.NoError(t, tracker.RefreshPrices(ctx))

	updated, found, err := st.GetOpenPosition(ctx, "0xuser", "token-yes")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.72, updated.CurrentPrice, 0.0001)
	assert.Greater(t, updated.UnrealizedPnL, 0.0, "price rose above entry, long position should show unrealized profit")
}

func TestTracker_FallsBackToBuyPriceWhenNoMidpoint(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	st, err := storage.NewSQLiteStorage(t.TempDir()+"/test.db", key)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	pos := domain.UpsertPosition(nil, "0xuser", "token-no", "market", domain.Buy, domain.StrategyCopy, "", 100, 0.5, now)
	_, err = st.UpsertPosition(ctx, pos)
	require.NoError(t, err)

	gw := &fakeGateway{midpoints: map[string]float64{}}
	tracker := New(st, gw, fakeClock{now: now}, Config{})

	require.NoError(t, tracker.RefreshPrices(ctx))

	updated, found, err := st.GetOpenPosition(ctx, "0xuser", "token-no")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.6, updated.CurrentPrice, 0.0001)
}

func TestTracker_NoOpenPositionsIsNoop(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	st, err := storage.NewSQLiteStorage(t.TempDir()+"/test.db", key)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tracker := New(st, &fakeGateway{}, fakeClock{now: time.Now()}, Config{})
	assert.NoError(t, tracker.RefreshPrices(context.Background()))
}
