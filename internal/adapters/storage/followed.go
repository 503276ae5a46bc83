package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// AddFollow registra a traderAddress como seguido por userAddress. Devuelve
// false si ya existía la fila (no es un error, es un no-op idempotente).
func (s *SQLiteStorage) AddFollow(ctx context.Context, userAddress, traderAddress, alias string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO followed_traders (user_address, trader_address, alias, added_at, active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(user_address, trader_address) DO NOTHING
	`, userAddress, traderAddress, alias, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("storage.AddFollow: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveFollow desactiva el seguimiento (soft-delete: conserva el histórico
// de total_copied/total_spent en vez de borrar la fila).
func (s *SQLiteStorage) RemoveFollow(ctx context.Context, userAddress, traderAddress string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE followed_traders SET active = 0
		WHERE user_address = ? AND trader_address = ? AND active = 1
	`, userAddress, traderAddress)
	if err != nil {
		return false, fmt.Errorf("storage.RemoveFollow: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStorage) ListFollows(ctx context.Context, userAddress string, includeInactive bool) ([]domain.FollowedTrader, error) {
	q := `SELECT user_address, trader_address, alias, added_at, active, total_copied, total_spent,
		copy_percentage, min_copy_size, max_copy_size, max_daily_spend, order_mode, max_slippage
		FROM followed_traders WHERE user_address = ?`
	args := []any{userAddress}
	if !includeInactive {
		q += ` AND active = 1`
	}
	q += ` ORDER BY added_at`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListFollows: %w", err)
	}
	defer rows.Close()

	var out []domain.FollowedTrader
	for rows.Next() {
		var f domain.FollowedTrader
		var active int
		var copyPct, minSize, maxSize, maxDaily, maxSlip sql.NullFloat64
		var orderMode string
		if err := rows.Scan(&f.UserAddress, &f.Address, &f.Alias, &f.AddedAt, &active,
			&f.TotalCopied, &f.TotalSpent, &copyPct, &minSize, &maxSize, &maxDaily,
			&orderMode, &maxSlip); err != nil {
			return nil, fmt.Errorf("storage.ListFollows: scan: %w", err)
		}
		f.Active = active != 0
		f.Overrides = overridesFromRow(copyPct, minSize, maxSize, maxDaily, orderMode, maxSlip)
		out = append(out, f)
	}
	return out, rows.Err()
}

func overridesFromRow(copyPct, minSize, maxSize, maxDaily sql.NullFloat64, orderMode string, maxSlip sql.NullFloat64) domain.TraderOverrides {
	var o domain.TraderOverrides
	if copyPct.Valid {
		o.CopyPercentage = &copyPct.Float64
	}
	if minSize.Valid {
		o.MinCopySize = &minSize.Float64
	}
	if maxSize.Valid {
		o.MaxCopySize = &maxSize.Float64
	}
	if maxDaily.Valid {
		o.MaxDailySpend = &maxDaily.Float64
	}
	o.OrderMode = domain.OrderMode(orderMode)
	if maxSlip.Valid {
		o.MaxSlippage = &maxSlip.Float64
	}
	return o
}

func (s *SQLiteStorage) UpdateFollowOverrides(ctx context.Context, userAddress, traderAddress string, overrides domain.TraderOverrides) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE followed_traders SET
			copy_percentage = ?, min_copy_size = ?, max_copy_size = ?,
			max_daily_spend = ?, order_mode = ?, max_slippage = ?
		WHERE user_address = ? AND trader_address = ?
	`, overrides.CopyPercentage, overrides.MinCopySize, overrides.MaxCopySize,
		overrides.MaxDailySpend, string(overrides.OrderMode), overrides.MaxSlippage,
		userAddress, traderAddress)
	if err != nil {
		return fmt.Errorf("storage.UpdateFollowOverrides: %w", err)
	}
	return nil
}

// IncrementFollowCounters se invoca tras cada copia ejecutada: suma uno al
// contador de trades copiados y amountSpent al acumulado del trader seguido.
func (s *SQLiteStorage) IncrementFollowCounters(ctx context.Context, userAddress, traderAddress string, amountSpent float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE followed_traders SET total_copied = total_copied + 1, total_spent = total_spent + ?
		WHERE user_address = ? AND trader_address = ?
	`, amountSpent, userAddress, traderAddress)
	if err != nil {
		return fmt.Errorf("storage.IncrementFollowCounters: %w", err)
	}
	return nil
}
