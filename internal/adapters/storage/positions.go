package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// UpsertPosition persiste el resultado ya calculado de domain.UpsertPosition:
// si p.ID está fijado, actualiza esa fila; si no, busca la posición abierta
// existente para (UserAddress, TokenID) y la actualiza, o inserta una nueva
// si no hay ninguna. Devuelve el ID de la fila afectada.
func (s *SQLiteStorage) UpsertPosition(ctx context.Context, p domain.Position) (int64, error) {
	id := p.ID
	if id == 0 {
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM positions WHERE user_address = ? AND token_id = ? AND status = ?
		`, p.UserAddress, p.TokenID, domain.PositionOpen).Scan(&id)
		if err != nil && err != sql.ErrNoRows {
			return 0, fmt.Errorf("storage.UpsertPosition: lookup: %w", err)
		}
	}

	if id == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO positions
				(user_address, token_id, market, side, size, avg_entry_price, current_price,
				 unrealized_pnl, cost_basis, strategy, copied_from, opened_at, last_updated, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.UserAddress, p.TokenID, p.Market, p.Side, p.Size, p.AvgEntryPrice, p.CurrentPrice,
			p.UnrealizedPnL, p.CostBasis, p.Strategy, p.CopiedFrom, p.OpenedAt, p.LastUpdated, p.Status)
		if err != nil {
			return 0, fmt.Errorf("storage.UpsertPosition: insert: %w", err)
		}
		return res.LastInsertId()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE positions SET
			market = ?, side = ?, size = ?, avg_entry_price = ?, current_price = ?,
			unrealized_pnl = ?, cost_basis = ?, strategy = ?, copied_from = ?, last_updated = ?, status = ?
		WHERE id = ?
	`, p.Market, p.Side, p.Size, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPnL, p.CostBasis,
		p.Strategy, p.CopiedFrom, p.LastUpdated, p.Status, id)
	if err != nil {
		return 0, fmt.Errorf("storage.UpsertPosition: update: %w", err)
	}
	return id, nil
}

func (s *SQLiteStorage) GetOpenPosition(ctx context.Context, userAddress, tokenID string) (domain.Position, bool, error) {
	p, err := scanPosition(s.db.QueryRowContext(ctx, `
		SELECT id, user_address, token_id, market, side, size, avg_entry_price, current_price,
		       unrealized_pnl, cost_basis, strategy, copied_from, opened_at, last_updated, status
		FROM positions WHERE user_address = ? AND token_id = ? AND status = ?
	`, userAddress, tokenID, domain.PositionOpen))
	if err == sql.ErrNoRows {
		return domain.Position{}, false, nil
	}
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("storage.GetOpenPosition: %w", err)
	}
	return p, true, nil
}

// ListOpenPositions lista las posiciones abiertas de userAddress, o de
// todos los usuarios si userAddress está vacío (usado por el worker
// global de refresco de precios).
func (s *SQLiteStorage) ListOpenPositions(ctx context.Context, userAddress string) ([]domain.Position, error) {
	query := `
		SELECT id, user_address, token_id, market, side, size, avg_entry_price, current_price,
		       unrealized_pnl, cost_basis, strategy, copied_from, opened_at, last_updated, status
		FROM positions WHERE status = ?`
	args := []any{domain.PositionOpen}
	if userAddress != "" {
		query += " AND user_address = ?"
		args = append(args, userAddress)
	}
	query += " ORDER BY opened_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOpenPositions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListOpenPositions: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ClosePosition(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE positions SET status = ? WHERE id = ?`, domain.PositionClosed, id)
	if err != nil {
		return fmt.Errorf("storage.ClosePosition: %w", err)
	}
	return nil
}

// BatchUpdatePrices aplica precios de mercado actuales a un lote de
// posiciones (por ID), recalculando el P&L no realizado en una única
// transacción — usado por el worker de mark-to-market periódico.
func (s *SQLiteStorage) BatchUpdatePrices(ctx context.Context, updates map[int64]float64) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.BatchUpdatePrices: begin: %w", err)
	}
	defer tx.Rollback()

	for id, price := range updates {
		var side domain.PositionSide
		var size, avgEntry float64
		err := tx.QueryRowContext(ctx,
			`SELECT side, size, avg_entry_price FROM positions WHERE id = ? AND status = ?`,
			id, domain.PositionOpen).Scan(&side, &size, &avgEntry)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("storage.BatchUpdatePrices: lookup %d: %w", id, err)
		}

		var pnl float64
		if side == domain.PositionLong {
			pnl = (price - avgEntry) * size
		} else {
			pnl = (avgEntry - price) * size
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE positions SET current_price = ?, unrealized_pnl = ?, last_updated = ? WHERE id = ?
		`, price, pnl, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("storage.BatchUpdatePrices: update %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func scanPosition(row *sql.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(&p.ID, &p.UserAddress, &p.TokenID, &p.Market, &p.Side, &p.Size, &p.AvgEntryPrice,
		&p.CurrentPrice, &p.UnrealizedPnL, &p.CostBasis, &p.Strategy, &p.CopiedFrom, &p.OpenedAt,
		&p.LastUpdated, &p.Status)
	return p, err
}

func scanPositionRow(rows *sql.Rows) (domain.Position, error) {
	var p domain.Position
	err := rows.Scan(&p.ID, &p.UserAddress, &p.TokenID, &p.Market, &p.Side, &p.Size, &p.AvgEntryPrice,
		&p.CurrentPrice, &p.UnrealizedPnL, &p.CostBasis, &p.Strategy, &p.CopiedFrom, &p.OpenedAt,
		&p.LastUpdated, &p.Status)
	return p, err
}
