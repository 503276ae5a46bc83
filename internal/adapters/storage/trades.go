package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// RecordTrade persiste un Trade ejecutado (o intentado) y devuelve su ID.
func (s *SQLiteStorage) RecordTrade(ctx context.Context, t domain.Trade) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(timestamp, user_address, strategy, token_id, side, amount, price, market,
			 expected_profit, copied_from, original_trade_id, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Timestamp, t.UserAddress, t.Strategy, t.TokenID, t.Side, t.Amount, t.Price, t.Market,
		t.ExpectedProfit, t.CopiedFrom, t.OriginalTradeID, t.Status, t.Notes)
	if err != nil {
		return 0, fmt.Errorf("storage.RecordTrade: %w", err)
	}
	return res.LastInsertId()
}

// ListTrades devuelve trades filtrados, más recientes primero.
func (s *SQLiteStorage) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT id, timestamp, user_address, strategy, token_id, side, amount, price,
		market, expected_profit, copied_from, original_trade_id, status, notes
		FROM trades WHERE user_address = ?`)
	args := []any{filter.UserAddress}

	if filter.Strategy != "" {
		q.WriteString(` AND strategy = ?`)
		args = append(args, filter.Strategy)
	}
	if filter.Status != "" {
		q.WriteString(` AND status = ?`)
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		q.WriteString(` AND market LIKE ?`)
		args = append(args, "%"+filter.Search+"%")
	}
	q.WriteString(` ORDER BY timestamp DESC`)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.UserAddress, &t.Strategy, &t.TokenID, &t.Side,
			&t.Amount, &t.Price, &t.Market, &t.ExpectedProfit, &t.CopiedFrom, &t.OriginalTradeID,
			&t.Status, &t.Notes); err != nil {
			return nil, fmt.Errorf("storage.ListTrades: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DailyExecutedSpend devuelve el gasto ejecutado hoy (UTC) para un usuario,
// una estrategia, y opcionalmente un trader concreto (copied_from). Pasar
// traderAddress == "" para el gasto global de la estrategia.
func (s *SQLiteStorage) DailyExecutedSpend(ctx context.Context, userAddress string, strategy domain.Strategy, traderAddress string) (float64, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	q := `SELECT COALESCE(SUM(amount), 0) FROM trades
		WHERE user_address = ? AND strategy = ? AND status = ? AND timestamp >= ?`
	args := []any{userAddress, strategy, domain.TradeExecuted, dayStart}
	if traderAddress != "" {
		q += ` AND copied_from = ?`
		args = append(args, traderAddress)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("storage.DailyExecutedSpend: %w", err)
	}
	return total, nil
}

// PnLSeries devuelve una serie diaria de profit esperado acumulado sobre
// los últimos days días.
func (s *SQLiteStorage) PnLSeries(ctx context.Context, userAddress string, strategy domain.Strategy, days int) ([]domain.PnLPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	q := `SELECT date(timestamp) AS d, COALESCE(SUM(expected_profit), 0)
		FROM trades WHERE user_address = ? AND status = ? AND timestamp >= ?`
	args := []any{userAddress, domain.TradeExecuted, since}
	if strategy != "" {
		q += ` AND strategy = ?`
		args = append(args, strategy)
	}
	q += ` GROUP BY d ORDER BY d`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.PnLSeries: %w", err)
	}
	defer rows.Close()

	var out []domain.PnLPoint
	var cumulative float64
	for rows.Next() {
		var dateStr string
		var profit float64
		if err := rows.Scan(&dateStr, &profit); err != nil {
			return nil, fmt.Errorf("storage.PnLSeries: scan: %w", err)
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		cumulative += profit
		out = append(out, domain.PnLPoint{Date: d, ExpectedProfit: profit, CumulativeProfit: cumulative})
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) CopyStats(ctx context.Context, userAddress string) (domain.CopyStats, error) {
	var st domain.CopyStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT copied_from)
		FROM trades WHERE user_address = ? AND strategy = ?
	`, domain.TradeExecuted, domain.TradeExecuted, domain.TradeFailed, userAddress, domain.StrategyCopy,
	).Scan(&st.TotalTrades, &st.TotalSpent, &st.TotalExecuted, &st.FailedTrades, &st.UniqueTradersCopied)
	if err != nil && err != sql.ErrNoRows {
		return domain.CopyStats{}, fmt.Errorf("storage.CopyStats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStorage) ArbStats(ctx context.Context, userAddress string) (domain.ArbStats, error) {
	var st domain.ArbStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN expected_profit ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM trades WHERE user_address = ? AND strategy = ?
	`, domain.TradeExecuted, domain.TradeExecuted, domain.TradeFailed, userAddress, domain.StrategyArbitrage,
	).Scan(&st.TotalTrades, &st.TotalSpent, &st.TotalExpectedProfit, &st.FailedTrades)
	if err != nil && err != sql.ErrNoRows {
		return domain.ArbStats{}, fmt.Errorf("storage.ArbStats: %w", err)
	}
	return st, nil
}
