package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *SQLiteStorage) CreateFund(ctx context.Context, f domain.Fund) (int64, error) {
	nav := f.NAVPerShare
	if nav <= 0 {
		nav = 1.0
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO funds (owner_address, name, description, created_at, active, total_aum, nav_per_share, total_shares)
		VALUES (?, ?, ?, ?, 1, 0, ?, 0)
	`, f.OwnerAddress, f.Name, f.Description, time.Now().UTC(), nav)
	if err != nil {
		return 0, fmt.Errorf("storage.CreateFund: %w", err)
	}
	return res.LastInsertId()
}

// UpdateFund aplica un parche de columnas arbitrarias a un fondo, siempre
// que ownerAddress coincida con el dueño registrado — evita que un usuario
// edite el fondo de otro. Las claves válidas de fields son "name",
// "description" y "active".
func (s *SQLiteStorage) UpdateFund(ctx context.Context, fundID int64, ownerAddress string, fields map[string]any) (bool, error) {
	allowed := map[string]bool{"name": true, "description": true, "active": true}
	var sets []string
	var args []any
	for k, v := range fields {
		if !allowed[k] {
			continue
		}
		sets = append(sets, k+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return false, nil
	}
	q := "UPDATE funds SET " + joinComma(sets) + " WHERE id = ? AND owner_address = ?"
	args = append(args, fundID, ownerAddress)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("storage.UpdateFund: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func (s *SQLiteStorage) GetFund(ctx context.Context, fundID int64) (domain.Fund, bool, error) {
	var f domain.Fund
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_address, name, description, created_at, active, total_aum, nav_per_share, total_shares
		FROM funds WHERE id = ?
	`, fundID).Scan(&f.ID, &f.OwnerAddress, &f.Name, &f.Description, &f.CreatedAt, &active,
		&f.TotalAUM, &f.NAVPerShare, &f.TotalShares)
	if err == sql.ErrNoRows {
		return domain.Fund{}, false, nil
	}
	if err != nil {
		return domain.Fund{}, false, fmt.Errorf("storage.GetFund: %w", err)
	}
	f.Active = active != 0
	return f, true, nil
}

func (s *SQLiteStorage) ListFunds(ctx context.Context, activeOnly bool) ([]domain.Fund, error) {
	q := `SELECT id, owner_address, name, description, created_at, active, total_aum, nav_per_share, total_shares FROM funds`
	if activeOnly {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("storage.ListFunds: %w", err)
	}
	defer rows.Close()

	var out []domain.Fund
	for rows.Next() {
		var f domain.Fund
		var active int
		if err := rows.Scan(&f.ID, &f.OwnerAddress, &f.Name, &f.Description, &f.CreatedAt, &active,
			&f.TotalAUM, &f.NAVPerShare, &f.TotalShares); err != nil {
			return nil, fmt.Errorf("storage.ListFunds: scan: %w", err)
		}
		f.Active = active != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceAllocations sustituye el conjunto completo de allocations de un
// fondo en una única transacción (borra y reinserta).
func (s *SQLiteStorage) ReplaceAllocations(ctx context.Context, fundID int64, allocs []domain.FundAllocation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.ReplaceAllocations: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fund_allocations WHERE fund_id = ?`, fundID); err != nil {
		return fmt.Errorf("storage.ReplaceAllocations: delete: %w", err)
	}
	for _, a := range allocs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fund_allocations (fund_id, trader_address, weight, active) VALUES (?, ?, ?, ?)
		`, fundID, a.TraderAddress, a.Weight, a.Active); err != nil {
			return fmt.Errorf("storage.ReplaceAllocations: insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListAllocations(ctx context.Context, fundID int64) ([]domain.FundAllocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fund_id, trader_address, weight, active FROM fund_allocations WHERE fund_id = ? ORDER BY id
	`, fundID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAllocations: %w", err)
	}
	defer rows.Close()

	var out []domain.FundAllocation
	for rows.Next() {
		var a domain.FundAllocation
		var active int
		if err := rows.Scan(&a.ID, &a.FundID, &a.TraderAddress, &a.Weight, &active); err != nil {
			return nil, fmt.Errorf("storage.ListAllocations: scan: %w", err)
		}
		a.Active = active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// InvestInFund registra el aporte de capital de un investor al NAV vigente
// del fondo y actualiza total_aum/total_shares en la misma transacción.
func (s *SQLiteStorage) InvestInFund(ctx context.Context, fundID int64, investorAddress string, amount float64) (domain.FundInvestment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FundInvestment{}, fmt.Errorf("storage.InvestInFund: begin: %w", err)
	}
	defer tx.Rollback()

	var navPerShare float64
	if err := tx.QueryRowContext(ctx, `SELECT nav_per_share FROM funds WHERE id = ?`, fundID).Scan(&navPerShare); err != nil {
		return domain.FundInvestment{}, fmt.Errorf("storage.InvestInFund: lookup fund: %w", err)
	}

	shares := domain.InvestShares(amount, navPerShare)
	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO fund_investments (fund_id, investor_address, amount_invested, shares, invested_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fundID, investorAddress, amount, shares, now, domain.FundInvestmentActive)
	if err != nil {
		return domain.FundInvestment{}, fmt.Errorf("storage.InvestInFund: insert: %w", err)
	}
	id, _ := res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `
		UPDATE funds SET total_aum = total_aum + ?, total_shares = total_shares + ? WHERE id = ?
	`, amount, shares, fundID); err != nil {
		return domain.FundInvestment{}, fmt.Errorf("storage.InvestInFund: update fund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.FundInvestment{}, fmt.Errorf("storage.InvestInFund: commit: %w", err)
	}
	return domain.FundInvestment{
		ID: id, FundID: fundID, InvestorAddress: investorAddress, AmountInvested: amount,
		Shares: shares, InvestedAt: now, Status: domain.FundInvestmentActive,
	}, nil
}

// WithdrawFromFund retira la totalidad de una inversión al NAV vigente,
// marca la inversión como withdrawn, y reduce total_aum/total_shares del
// fondo. Devuelve el importe en USD retirado.
func (s *SQLiteStorage) WithdrawFromFund(ctx context.Context, investmentID int64, investorAddress string) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.WithdrawFromFund: begin: %w", err)
	}
	defer tx.Rollback()

	var fundID int64
	var shares float64
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT fund_id, shares, status FROM fund_investments WHERE id = ? AND investor_address = ?
	`, investmentID, investorAddress).Scan(&fundID, &shares, &status)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("storage.WithdrawFromFund: investment %d not found for %s", investmentID, investorAddress)
	}
	if err != nil {
		return 0, fmt.Errorf("storage.WithdrawFromFund: lookup: %w", err)
	}
	if domain.FundInvestmentStatus(status) != domain.FundInvestmentActive {
		return 0, fmt.Errorf("storage.WithdrawFromFund: investment %d already withdrawn", investmentID)
	}

	var navPerShare float64
	if err := tx.QueryRowContext(ctx, `SELECT nav_per_share FROM funds WHERE id = ?`, fundID).Scan(&navPerShare); err != nil {
		return 0, fmt.Errorf("storage.WithdrawFromFund: lookup fund: %w", err)
	}
	amount := domain.WithdrawAmount(shares, navPerShare)

	if _, err := tx.ExecContext(ctx, `
		UPDATE fund_investments SET status = ? WHERE id = ?
	`, domain.FundInvestmentWithdrawn, investmentID); err != nil {
		return 0, fmt.Errorf("storage.WithdrawFromFund: update investment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE funds SET total_aum = total_aum - ?, total_shares = total_shares - ? WHERE id = ?
	`, amount, shares, fundID); err != nil {
		return 0, fmt.Errorf("storage.WithdrawFromFund: update fund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.WithdrawFromFund: commit: %w", err)
	}
	return amount, nil
}

func (s *SQLiteStorage) ListInvestorInvestments(ctx context.Context, investorAddress string) ([]domain.FundInvestment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fund_id, investor_address, amount_invested, shares, invested_at, status
		FROM fund_investments WHERE investor_address = ? ORDER BY invested_at DESC
	`, investorAddress)
	if err != nil {
		return nil, fmt.Errorf("storage.ListInvestorInvestments: %w", err)
	}
	defer rows.Close()

	var out []domain.FundInvestment
	for rows.Next() {
		var inv domain.FundInvestment
		if err := rows.Scan(&inv.ID, &inv.FundID, &inv.InvestorAddress, &inv.AmountInvested,
			&inv.Shares, &inv.InvestedAt, &inv.Status); err != nil {
			return nil, fmt.Errorf("storage.ListInvestorInvestments: scan: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) RecordPerformance(ctx context.Context, p domain.FundPerformancePoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fund_performance (fund_id, date, nav, daily_return, cumulative_return)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fund_id, date) DO UPDATE SET
			nav = excluded.nav, daily_return = excluded.daily_return, cumulative_return = excluded.cumulative_return
	`, p.FundID, p.Date, p.NAV, p.DailyReturn, p.CumulativeReturn)
	if err != nil {
		return fmt.Errorf("storage.RecordPerformance: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListPerformance(ctx context.Context, fundID int64, days int) ([]domain.FundPerformancePoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT fund_id, date, nav, daily_return, cumulative_return
		FROM fund_performance WHERE fund_id = ? AND date >= ? ORDER BY date
	`, fundID, since)
	if err != nil {
		return nil, fmt.Errorf("storage.ListPerformance: %w", err)
	}
	defer rows.Close()

	var out []domain.FundPerformancePoint
	for rows.Next() {
		var p domain.FundPerformancePoint
		if err := rows.Scan(&p.FundID, &p.Date, &p.NAV, &p.DailyReturn, &p.CumulativeReturn); err != nil {
			return nil, fmt.Errorf("storage.ListPerformance: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) RecordFundTrade(ctx context.Context, fundID, tradeID int64, traderAddress string, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fund_trades (fund_id, trade_id, trader_address, amount) VALUES (?, ?, ?, ?)
	`, fundID, tradeID, traderAddress, amount)
	if err != nil {
		return fmt.Errorf("storage.RecordFundTrade: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListFundTrades(ctx context.Context, fundID int64, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.timestamp, t.user_address, t.strategy, t.token_id, t.side, t.amount, t.price,
		       t.market, t.expected_profit, t.copied_from, t.original_trade_id, t.status, t.notes
		FROM fund_trades ft JOIN trades t ON t.id = ft.trade_id
		WHERE ft.fund_id = ? ORDER BY t.timestamp DESC LIMIT ?
	`, fundID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListFundTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.UserAddress, &t.Strategy, &t.TokenID, &t.Side,
			&t.Amount, &t.Price, &t.Market, &t.ExpectedProfit, &t.CopiedFrom, &t.OriginalTradeID,
			&t.Status, &t.Notes); err != nil {
			return nil, fmt.Errorf("storage.ListFundTrades: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
