package fundengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybacker/internal/adapters/storage"
	"github.com/alejandrodnm/polybacker/internal/domain"
)

const testOwner = "0xowner"
const testTrader = "0xtrader"

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeGateway struct {
	trades      map[string][]domain.UpstreamTrade
	placedCount int
}

func (g *fakeGateway) GetTraderTrades(ctx context.Context, address string, limit int) ([]domain.UpstreamTrade, error) {
	return g.trades[address], nil
}
func (g *fakeGateway) GetPrice(ctx context.Context, tokenID string, side domain.Side) (float64, bool, error) {
	return 0, false, nil
}
func (g *fakeGateway) GetMidpoint(ctx context.Context, tokenID string) (float64, bool, error) {
	return 0, false, nil
}
func (g *fakeGateway) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	return nil, nil
}
func (g *fakeGateway) FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error) {
	return nil, nil
}
func (g *fakeGateway) PlaceMarketOrder(ctx context.Context, userAddress, tokenID string, usdAmount float64, side domain.Side) (domain.PlacedOrder, error) {
	g.placedCount++
	return domain.PlacedOrder{CLOBOrderID: "order-1", Status: "matched", TakenAmount: usdAmount}, nil
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

func TestEngine_CopiesFundTradeProportionalToAUM(t *testing.T) {
	// ListPerformance filtra por días contados desde el reloj real, así que
	// el punto de NAV tiene que caer cerca de la hora real.
	now := time.Now().UTC()
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.UpsertUser(ctx, testOwner, domain.RoleUser)
	require.NoError(t, err)
	fundID, err := st.CreateFund(ctx, domain.Fund{OwnerAddress: testOwner, Name: "Top Traders", Active: true})
	require.NoError(t, err)

	_, err = st.InvestInFund(ctx, fundID, "0xinvestor", 10000)
	require.NoError(t, err)

	require.NoError(t, st.ReplaceAllocations(ctx, fundID, []domain.FundAllocation{
		{FundID: fundID, TraderAddress: testTrader, Weight: 1.0, Active: true},
	}))

	gw := &fakeGateway{trades: map[string][]domain.UpstreamTrade{
		testTrader: {{ID: "t1", TokenID: "token-yes", Side: "BUY", Size: 1000, Price: 0.5, Market: "m", Timestamp: now.Add(-10 * time.Second)}},
	}}

	e := New(st, gw, nil, fakeClock{now: now}, Config{
		CopyPercentage: 0.10, MinCopySize: 5, MaxCopySize: 1000, MaxTradeAge: 5 * time.Minute, PollInterval: time.Second,
	})

	result, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FundsProcessed)
	assert.Equal(t, 1, result.TradesCopied)
	assert.Equal(t, 1, gw.placedCount)

	trades, err := st.ListFundTrades(ctx, fundID, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeExecuted, trades[0].Status)

	perf, err := st.ListPerformance(ctx, fundID, 5)
	require.NoError(t, err)
	require.Len(t, perf, 1)
}

func TestEngine_DedupsAcrossCycles(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.UpsertUser(ctx, testOwner, domain.RoleUser)
	require.NoError(t, err)
	fundID, err := st.CreateFund(ctx, domain.Fund{OwnerAddress: testOwner, Name: "Fund", Active: true})
	require.NoError(t, err)
	_, err = st.InvestInFund(ctx, fundID, "0xinvestor", 5000)
	require.NoError(t, err)
	require.NoError(t, st.ReplaceAllocations(ctx, fundID, []domain.FundAllocation{
		{FundID: fundID, TraderAddress: testTrader, Weight: 1.0, Active: true},
	}))

	gw := &fakeGateway{trades: map[string][]domain.UpstreamTrade{
		testTrader: {{ID: "dup-1", TokenID: "token-yes", Side: "BUY", Size: 1000, Price: 0.5, Market: "m", Timestamp: now.Add(-10 * time.Second)}},
	}}
	e := New(st, gw, nil, fakeClock{now: now}, Config{CopyPercentage: 0.10, MinCopySize: 5, MaxCopySize: 1000, MaxTradeAge: 5 * time.Minute})

	first, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TradesCopied)

	second, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TradesCopied)
	assert.Equal(t, 1, gw.placedCount)
}
