package arbengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybacker/internal/adapters/storage"
	"github.com/alejandrodnm/polybacker/internal/domain"
)

const testUser = "0xuser"

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeGateway struct {
	markets   []domain.Market
	books     map[string]domain.OrderBook
	failLegOn string
}

func (g *fakeGateway) GetTraderTrades(ctx context.Context, address string, limit int) ([]domain.UpstreamTrade, error) {
	return nil, nil
}
func (g *fakeGateway) GetPrice(ctx context.Context, tokenID string, side domain.Side) (float64, bool, error) {
	return 0, false, nil
}
func (g *fakeGateway) GetMidpoint(ctx context.Context, tokenID string) (float64, bool, error) {
	return 0, false, nil
}
func (g *fakeGateway) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	return g.books, nil
}
func (g *fakeGateway) FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error) {
	return g.markets, nil
}
func (g *fakeGateway) PlaceMarketOrder(ctx context.Context, userAddress, tokenID string, usdAmount float64, side domain.Side) (domain.PlacedOrder, error) {
	if tokenID == g.failLegOn {
		return domain.PlacedOrder{}, errors.New("simulated leg failure")
	}
	return domain.PlacedOrder{CLOBOrderID: "order-" + tokenID, Status: "matched", TakenAmount: usdAmount}, nil
}
func (g *fakeGateway) PlaceLimitOrder(ctx context.Context, userAddress, tokenID string, limitPrice, sizeShares float64, side domain.Side) (domain.PlacedOrder, error) {
	return domain.PlacedOrder{}, nil
}
func (g *fakeGateway) GetBalance(ctx context.Context, userAddress string) (float64, error) {
	return 10000, nil
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	st, err := storage.NewSQLiteStorage(t.TempDir()+"/test.db", key)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func arbMarket() domain.Market {
	return domain.Market{
		ConditionID: "cond-1",
		Question:    "Will it rain tomorrow",
		Tokens: [2]domain.Token{
			{TokenID: "token-yes", Outcome: "Yes"},
			{TokenID: "token-no", Outcome: "No"},
		},
		Active: true,
	}
}

func TestEngine_ExecutesProfitableArbitrage(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		markets: []domain.Market{arbMarket()},
		books: map[string]domain.OrderBook{
			"token-yes": {TokenID: "token-yes", Asks: []domain.BookEntry{{Price: 0.45, Size: 1000}}},
			"token-no":  {TokenID: "token-no", Asks: []domain.BookEntry{{Price: 0.45, Size: 1000}}},
		},
	}
	st := newTestStorage(t)
	e := New(testUser, st, gw, nil, fakeClock{now: now}, Config{
		MinProfitPct: 1.0, TradeAmount: 100, MaxPositionSize: 500, PollInterval: time.Second,
	})

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.MarketsScanned)
	assert.Equal(t, 1, result.Opportunities)
	assert.Equal(t, 1, result.Executed)

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser, Strategy: domain.StrategyArbitrage})
	require.NoError(t, err)
	assert.Len(t, trades, 2, "both YES and NO legs should be recorded")
	for _, tr := range trades {
		assert.Equal(t, domain.TradeExecuted, tr.Status)
	}
}

func TestEngine_SkipsUnprofitableMarket(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		markets: []domain.Market{arbMarket()},
		books: map[string]domain.OrderBook{
			"token-yes": {TokenID: "token-yes", Asks: []domain.BookEntry{{Price: 0.55, Size: 1000}}},
			"token-no":  {TokenID: "token-no", Asks: []domain.BookEntry{{Price: 0.55, Size: 1000}}},
		},
	}
	st := newTestStorage(t)
	e := New(testUser, st, gw, nil, fakeClock{now: now}, Config{MinProfitPct: 1.0, TradeAmount: 100})

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Opportunities)
	assert.Equal(t, 0, result.Executed)
}

func TestEngine_CapsTradeToMaxProfitableDepth(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		markets: []domain.Market{arbMarket()},
		books: map[string]domain.OrderBook{
			// thin at $50, then a much worse tier — profitable only up
			// to the first tier's depth.
			"token-yes": {TokenID: "token-yes", Asks: []domain.BookEntry{
				{Price: 0.45, Size: 111.111},
				{Price: 0.80, Size: 1000},
			}},
			"token-no": {TokenID: "token-no", Asks: []domain.BookEntry{{Price: 0.45, Size: 1000}}},
		},
	}
	st := newTestStorage(t)
	e := New(testUser, st, gw, nil, fakeClock{now: now}, Config{
		MinProfitPct: 1.0, TradeAmount: 200, MaxPositionSize: 500, PollInterval: time.Second,
	})

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser, Strategy: domain.StrategyArbitrage})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	for _, tr := range trades {
		assert.InDelta(t, 25.0, tr.Amount, 0.01, "deployed capital should be capped to the $50 profitable depth, not the requested $200")
	}
}

func TestEngine_PartialLegFailureRecordsFailedTrade(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		markets: []domain.Market{arbMarket()},
		books: map[string]domain.OrderBook{
			"token-yes": {TokenID: "token-yes", Asks: []domain.BookEntry{{Price: 0.45, Size: 1000}}},
			"token-no":  {TokenID: "token-no", Asks: []domain.BookEntry{{Price: 0.45, Size: 1000}}},
		},
		failLegOn: "token-no",
	}
	st := newTestStorage(t)
	e := New(testUser, st, gw, nil, fakeClock{now: now}, Config{MinProfitPct: 1.0, TradeAmount: 100})

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Opportunities)
	assert.Equal(t, 0, result.Executed)
	assert.Equal(t, 1, result.Failed)

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser, Strategy: domain.StrategyArbitrage})
	require.NoError(t, err)
	require.Len(t, trades, 2)

	var sawFailed bool
	for _, tr := range trades {
		if tr.TokenID == "token-no" {
			assert.Equal(t, domain.TradeFailed, tr.Status)
			sawFailed = true
		}
	}
	assert.True(t, sawFailed)
}
