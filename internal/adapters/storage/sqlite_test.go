package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	s, err := NewSQLiteStorage(path, key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	u, err := s.UpsertUser(ctx, "0xabc", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", u.Address)
	assert.NotNil(t, u.LastLogin)

	got, ok, err := s.GetUser(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RoleUser, got.Role)

	_, ok, err = s.GetUser(ctx, "0xmissing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_Nonce(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.CreateNonce(ctx, "nonce1"))

	ok, err := s.ConsumeNonce(ctx, "nonce1", "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)

	// Segundo intento de consumo del mismo nonce falla (ya consumido).
	ok, err = s.ConsumeNonce(ctx, "nonce1", "0xabc")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ConsumeNonce(ctx, "never-created", "0xabc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_Whitelist(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	added, err := s.AddWhitelist(ctx, "0xowner", "0xowner")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddWhitelist(ctx, "0xowner", "0xowner")
	require.NoError(t, err)
	assert.False(t, added, "re-adding is a no-op")

	ok, err := s.IsWhitelisted(ctx, "0xowner")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.UpsertUser(ctx, "0xowner", domain.RoleOwner)
	require.NoError(t, err)

	err = s.RemoveWhitelist(ctx, "0xowner")
	assert.Error(t, err, "the owner cannot be removed")

	_, err = s.UpsertUser(ctx, "0xregular", domain.RoleUser)
	require.NoError(t, err)
	_, err = s.AddWhitelist(ctx, "0xregular", "0xowner")
	require.NoError(t, err)
	require.NoError(t, s.RemoveWhitelist(ctx, "0xregular"))

	ok, err = s.IsWhitelisted(ctx, "0xregular")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := s.ListWhitelist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0xowner", entries[0].Address)
}

func TestSQLiteStorage_Trades(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.RecordTrade(ctx, domain.Trade{
		Timestamp:   time.Now().UTC(),
		UserAddress: "0xabc",
		Strategy:    domain.StrategyCopy,
		TokenID:     "tok1",
		Side:        domain.Buy,
		Amount:      50,
		Price:       0.6,
		Market:      "Will it rain?",
		CopiedFrom:  "0xtrader",
		Status:      domain.TradeExecuted,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	trades, err := s.ListTrades(ctx, domain.TradeFilter{UserAddress: "0xabc"})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "tok1", trades[0].TokenID)

	spend, err := s.DailyExecutedSpend(ctx, "0xabc", domain.StrategyCopy, "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, spend)

	spend, err = s.DailyExecutedSpend(ctx, "0xabc", domain.StrategyCopy, "0xother-trader")
	require.NoError(t, err)
	assert.Equal(t, 0.0, spend)

	stats, err := s.CopyStats(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 50.0, stats.TotalSpent)
	assert.Equal(t, 1, stats.UniqueTradersCopied)
}

func TestSQLiteStorage_FollowedTraders(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	added, err := s.AddFollow(ctx, "0xuser", "0xtrader", "Whale")
	require.NoError(t, err)
	assert.True(t, added)

	pct := 0.5
	require.NoError(t, s.UpdateFollowOverrides(ctx, "0xuser", "0xtrader", domain.TraderOverrides{
		CopyPercentage: &pct,
		OrderMode:      domain.OrderModeLimit,
	}))

	require.NoError(t, s.IncrementFollowCounters(ctx, "0xuser", "0xtrader", 25))

	follows, err := s.ListFollows(ctx, "0xuser", false)
	require.NoError(t, err)
	require.Len(t, follows, 1)
	assert.Equal(t, "Whale", follows[0].Alias)
	assert.Equal(t, 1, follows[0].TotalCopied)
	assert.Equal(t, 25.0, follows[0].TotalSpent)
	require.NotNil(t, follows[0].Overrides.CopyPercentage)
	assert.Equal(t, 0.5, *follows[0].Overrides.CopyPercentage)
	assert.Equal(t, domain.OrderModeLimit, follows[0].Overrides.OrderMode)

	removed, err := s.RemoveFollow(ctx, "0xuser", "0xtrader")
	require.NoError(t, err)
	assert.True(t, removed)

	follows, err = s.ListFollows(ctx, "0xuser", false)
	require.NoError(t, err)
	assert.Len(t, follows, 0)

	follows, err = s.ListFollows(ctx, "0xuser", true)
	require.NoError(t, err)
	assert.Len(t, follows, 1)
}

func TestSQLiteStorage_Dedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	seen, err := s.IsSeen(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen(ctx, "fp1"))
	require.NoError(t, s.MarkSeen(ctx, "fp1")) // idempotent

	seen, err = s.IsSeen(ctx, "fp1")
	require.NoError(t, err)
	assert.True(t, seen)

	n, err := s.ExpireSeen(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	seen, err = s.IsSeen(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSQLiteStorage_Positions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	now := time.Now().UTC()

	p := domain.UpsertPosition(nil, "0xuser", "tok1", "Will it rain?", domain.Buy,
		domain.StrategyCopy, "0xtrader", 50, 0.5, now)

	id, err := s.UpsertPosition(ctx, p)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, ok, err := s.GetOpenPosition(ctx, "0xuser", "tok1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PositionLong, got.Side)
	assert.InDelta(t, 100.0, got.Size, 0.001)

	got.ID = id
	updated := domain.UpsertPosition(&got, "0xuser", "tok1", "Will it rain?", domain.Buy,
		domain.StrategyCopy, "0xtrader", 50, 0.5, now)
	updated.ID = id
	_, err = s.UpsertPosition(ctx, updated)
	require.NoError(t, err)

	got, ok, err = s.GetOpenPosition(ctx, "0xuser", "tok1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 200.0, got.Size, 0.001)

	require.NoError(t, s.BatchUpdatePrices(ctx, map[int64]float64{id: 0.7}))
	got, _, err = s.GetOpenPosition(ctx, "0xuser", "tok1")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.CurrentPrice, 0.001)
	assert.Greater(t, got.UnrealizedPnL, 0.0)

	open, err := s.ListOpenPositions(ctx, "0xuser")
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, s.ClosePosition(ctx, id))
	_, ok, err = s.GetOpenPosition(ctx, "0xuser", "tok1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_Funds(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	fundID, err := s.CreateFund(ctx, domain.Fund{OwnerAddress: "0xowner", Name: "Alpha"})
	require.NoError(t, err)

	ok, err := s.UpdateFund(ctx, fundID, "0xowner", map[string]any{"description": "copies whales"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateFund(ctx, fundID, "0xintruder", map[string]any{"description": "hijacked"})
	require.NoError(t, err)
	assert.False(t, ok, "only the owner can update the fund")

	require.NoError(t, s.ReplaceAllocations(ctx, fundID, []domain.FundAllocation{
		{TraderAddress: "0xtrader1", Weight: 0.6, Active: true},
		{TraderAddress: "0xtrader2", Weight: 0.4, Active: true},
	}))
	allocs, err := s.ListAllocations(ctx, fundID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	inv, err := s.InvestInFund(ctx, fundID, "0xinvestor", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, inv.Shares) // NAV inicial 1.0

	fund, ok, err := s.GetFund(ctx, fundID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1000.0, fund.TotalAUM)

	amount, err := s.WithdrawFromFund(ctx, inv.ID, "0xinvestor")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, amount)

	fund, _, err = s.GetFund(ctx, fundID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, fund.TotalAUM)

	_, err = s.WithdrawFromFund(ctx, inv.ID, "0xinvestor")
	assert.Error(t, err, "cannot withdraw twice")

	require.NoError(t, s.RecordPerformance(ctx, domain.FundPerformancePoint{
		FundID: fundID, Date: time.Now().UTC(), NAV: 1.05, DailyReturn: 5, CumulativeReturn: 5,
	}))
	perf, err := s.ListPerformance(ctx, fundID, 30)
	require.NoError(t, err)
	require.Len(t, perf, 1)

	tradeID, err := s.RecordTrade(ctx, domain.Trade{
		Timestamp: time.Now().UTC(), UserAddress: "0xfund", Strategy: domain.StrategyFund,
		TokenID: "tok1", Side: domain.Buy, Amount: 20, Status: domain.TradeExecuted,
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordFundTrade(ctx, fundID, tradeID, "0xtrader1", 20))

	fundTrades, err := s.ListFundTrades(ctx, fundID, 10)
	require.NoError(t, err)
	require.Len(t, fundTrades, 1)

	investments, err := s.ListInvestorInvestments(ctx, "0xinvestor")
	require.NoError(t, err)
	require.Len(t, investments, 1)
	assert.Equal(t, domain.FundInvestmentWithdrawn, investments[0].Status)
}

func TestSQLiteStorage_PreferencesAndCreds(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.MergePreferences(ctx, "0xuser", map[string]any{"theme": "dark"}))
	require.NoError(t, s.MergePreferences(ctx, "0xuser", map[string]any{"alias_0xtrader": "Whale"}))

	prefs, err := s.GetPreferences(ctx, "0xuser")
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs.Data["theme"])
	assert.Equal(t, "Whale", prefs.Data["alias_0xtrader"])

	require.NoError(t, s.SaveCreds(ctx, domain.APICredentials{
		UserAddress: "0xuser", APIKey: "key1", APISecret: "super-secret", APIPassphrase: "pass1",
	}))

	creds, ok, err := s.GetCreds(ctx, "0xuser")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "super-secret", creds.APISecret, "secret round-trips through AES-GCM intact")

	require.NoError(t, s.DeleteCreds(ctx, "0xuser"))
	_, ok, err = s.GetCreds(ctx, "0xuser")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_Events(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.RecordEvent(ctx, domain.EngineEvent{
		Timestamp: time.Now().UTC(), UserAddress: "0xuser", Strategy: domain.StrategyCopy,
		EventType: "trade_copied", Message: "copied a BUY",
	}))

	events, err := s.ListEvents(ctx, domain.EventFilter{UserAddress: "0xuser"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "trade_copied", events[0].EventType)
}
