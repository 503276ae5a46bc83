package copyengine

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
const testTrader = "0xtrader"

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeGateway struct {
	trades      []domain.UpstreamTrade
	placedCount int
	failPlace   bool
}

func (g *fakeGateway) GetTraderTrades(ctx context.Context, address string, limit int) ([]domain.UpstreamTrade, error) {
	return g.trades, nil
}
func (g *fakeGateway) GetPrice(ctx context.Context, tokenID string, side domain.Side) (float64, bool, error) {
	return 0.5, true, nil
}
func (g *fakeGateway) GetMidpoint(ctx context.Context, tokenID string) (float64, bool, error) {
	return 0.5, true, nil
}
func (g *fakeGateway) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	return nil, nil
}
func (g *fakeGateway) FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error) {
	return nil, nil
}
func (g *fakeGateway) PlaceMarketOrder(ctx context.Context, userAddress, tokenID string, usdAmount float64, side domain.Side) (domain.PlacedOrder, error) {
	g.placedCount++
	if g.failPlace {
		return domain.PlacedOrder{}, errors.New("simulated placement failure")
	}
	return domain.PlacedOrder{CLOBOrderID: "order-1", Status: "matched", TakenAmount: usdAmount}, nil
}
func (g *fakeGateway) PlaceLimitOrder(ctx context.Context, userAddress, tokenID string, limitPrice, sizeShares float64, side domain.Side) (domain.PlacedOrder, error) {
	g.placedCount++
	return domain.PlacedOrder{CLOBOrderID: "order-2", Status: "live"}, nil
}
func (g *fakeGateway) GetBalance(ctx context.Context, userAddress string) (float64, error) {
	return 10000, nil
}

type fakeNotifier struct {
	detected int
	copied   int
}

func (n *fakeNotifier) NotifyEvent(ctx context.Context, e domain.EngineEvent) error { return nil }
func (n *fakeNotifier) NotifyTradeDetected(ctx context.Context, trader domain.FollowedTrader, trade domain.UpstreamTrade) error {
	n.detected++
	return nil
}
func (n *fakeNotifier) NotifyTradeCopied(ctx context.Context, trader domain.FollowedTrader, trade domain.Trade) error {
	n.copied++
	return nil
}

func newTestEngine(t *testing.T, gw *fakeGateway, notifier *fakeNotifier, clock fakeClock, cfg Config) (*Engine, *storage.SQLiteStorage) {
	t.Helper()
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	st, err := storage.NewSQLiteStorage(t.TempDir()+"/test.db", key)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	_, err = st.UpsertUser(ctx, testUser, domain.RoleUser)
	require.NoError(t, err)
	_, err = st.AddFollow(ctx, testUser, testTrader, "alice")
	require.NoError(t, err)

	return New(testUser, st, gw, notifier, clock, cfg), st
}

func baseConfig() Config {
	return Config{
		Defaults: domain.UserDefaults{
			CopyPercentage: 0.10,
			MinCopySize:    5,
			MaxCopySize:    100,
			MaxDailySpend:  500,
			MaxTradeAge:    5 * time.Minute,
			OrderMode:      domain.OrderModeMarket,
			MaxSlippage:    0.02,
		},
		GlobalDailyLimit: 1000,
		PollInterval:     time.Second,
	}
}

func TestEngine_CopiesFreshTrade(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{trades: []domain.UpstreamTrade{{
		ID: "trade-1", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.5,
		Market: "Will it rain", Timestamp: now.Add(-30 * time.Second),
	}}}
	notifier := &fakeNotifier{}
	e, st := newTestEngine(t, gw, notifier, fakeClock{now: now}, baseConfig())

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TradersPolled)
	assert.Equal(t, 1, result.TradesSeen)
	assert.Equal(t, 1, result.TradesCopied)
	assert.Equal(t, 1, gw.placedCount)
	assert.Equal(t, 1, notifier.copied)

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeExecuted, trades[0].Status)

	pos, found, err := st.GetOpenPosition(context.Background(), testUser, "token-yes")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.PositionLong, pos.Side)
}

func TestEngine_DedupAcrossPolls(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{trades: []domain.UpstreamTrade{{
		ID: "trade-dup", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.5,
		Market: "Will it rain", Timestamp: now.Add(-30 * time.Second),
	}}}
	e, _ := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, baseConfig())

	first, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.TradesCopied)

	second, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.TradesCopied)
	assert.Equal(t, 0, second.TradesRejected)
	assert.Equal(t, 1, gw.placedCount, "second poll must not re-place the same upstream trade")
}

func TestEngine_RejectsStaleTrade(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{trades: []domain.UpstreamTrade{{
		ID: "trade-stale", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.5,
		Market: "Will it rain", Timestamp: now.Add(-1 * time.Hour),
	}}}
	e, _ := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, baseConfig())

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TradesCopied)
	assert.Equal(t, 1, result.TradesRejected)
	assert.Equal(t, 0, gw.placedCount)
}

func TestEngine_RejectsOverDailyCap(t *testing.T) {
	// El gasto diario del Store se cuenta desde la medianoche UTC del reloj
	// real, así que este test usa la hora real.
	now := time.Now().UTC()
	cfg := baseConfig()
	cfg.Defaults.MaxDailySpend = 10 // per-trader cap, quickly exhausted

	gw := &fakeGateway{trades: []domain.UpstreamTrade{
		{ID: "trade-a", TokenID: "token-yes", Side: "BUY", Size: 1000, Price: 0.5, Market: "m", Timestamp: now.Add(-10 * time.Second)},
		{ID: "trade-b", TokenID: "token-yes", Side: "BUY", Size: 1000, Price: 0.5, Market: "m", Timestamp: now.Add(-5 * time.Second)},
	}}
	e, _ := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, cfg)

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TradesCopied)
	assert.Equal(t, 1, result.TradesRejected, "second trade should exceed the exhausted per-trader daily cap")
}

func TestEngine_LimitModeUsesSlippageBoundedPrice(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	cfg := baseConfig()
	cfg.Defaults.OrderMode = domain.OrderModeLimit
	cfg.Defaults.MaxSlippage = 0.05

	gw := &fakeGateway{trades: []domain.UpstreamTrade{{
		ID: "trade-limit", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.60,
		Market: "m", Timestamp: now.Add(-10 * time.Second),
	}}}
	e, st := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, cfg)

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TradesCopied)

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 0.63, trades[0].Price, 0.001, "limit price should be trader price × (1 + maxSlippage), capped at 0.99")
}

func TestEngine_BootstrapMarksSeenWithoutCopying(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{trades: []domain.UpstreamTrade{{
		ID: "trade-historical", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.5,
		Market: "Will it rain", Timestamp: now.Add(-30 * time.Second),
	}}}
	e, st := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, baseConfig())

	marked, err := e.bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Equal(t, 0, gw.placedCount, "bootstrap must never place an order")

	seen, err := st.IsSeen(context.Background(), "trade-historical")
	require.NoError(t, err)
	assert.True(t, seen)

	// The very same trade reappearing on a real poll after bootstrap must
	// now be treated as already seen, not copied.
	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TradesCopied)
	assert.Equal(t, 0, gw.placedCount)
}

func TestEngine_RunMaintenanceExpiresOldSeenTrades(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	e, st := newTestEngine(t, &fakeGateway{}, &fakeNotifier{}, fakeClock{now: now}, baseConfig())

	require.NoError(t, st.MarkSeen(context.Background(), "trade-old"))

	// MarkSeen sella con el reloj real, así que el reloj futuro parte de él.
	futureClock := fakeClock{now: time.Now().UTC().Add(8 * 24 * time.Hour)}
	e2 := New(testUser, st, &fakeGateway{}, &fakeNotifier{}, futureClock, baseConfig())
	e2.runMaintenance(context.Background(), maintenanceEvery, CycleResult{})

	seen, err := st.IsSeen(context.Background(), "trade-old")
	require.NoError(t, err)
	assert.False(t, seen, "seen entries older than seenTTL must be purged")

	events, err := st.ListEvents(context.Background(), domain.EventFilter{UserAddress: testUser, Strategy: domain.StrategyCopy, Limit: 10})
	require.NoError(t, err)
	var sawStats bool
	for _, ev := range events {
		if ev.EventType == "periodic_stats" {
			sawStats = true
		}
	}
	assert.True(t, sawStats)
	_ = e
}

func TestEngine_DryRunSkipsGatewayAndRecordsDryRunStatus(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{trades: []domain.UpstreamTrade{{
		ID: "trade-dry", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.5,
		Market: "Will it rain", Timestamp: now.Add(-30 * time.Second),
	}}}
	cfg := baseConfig()
	cfg.DryRun = true
	e, st := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, cfg)

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TradesCopied)
	assert.Equal(t, 0, gw.placedCount, "dry run must never call the gateway")

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeDryRun, trades[0].Status)

	_, found, err := st.GetOpenPosition(context.Background(), testUser, "token-yes")
	require.NoError(t, err)
	assert.False(t, found, "dry run must not open a real position")
}

func TestEngine_GatewayFailureMarksSeenAndRecordsFailedTrade(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{failPlace: true, trades: []domain.UpstreamTrade{{
		ID: "trade-fail", TokenID: "token-yes", Side: "BUY", Size: 100, Price: 0.5,
		Market: "m", Timestamp: now.Add(-10 * time.Second),
	}}}
	e, st := newTestEngine(t, gw, &fakeNotifier{}, fakeClock{now: now}, baseConfig())

	result, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TradesRejected)

	seen, err := st.IsSeen(context.Background(), "trade-fail")
	require.NoError(t, err)
	assert.True(t, seen, "a failed placement must still be marked seen to avoid retry storms")

	trades, err := st.ListTrades(context.Background(), domain.TradeFilter{UserAddress: testUser})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeFailed, trades[0].Status)
}
