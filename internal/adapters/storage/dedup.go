package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MarkSeen registra un fingerprint de trade upstream como ya procesado.
// Idempotente: un fingerprint repetido no produce error.
func (s *SQLiteStorage) MarkSeen(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_trade_ids (fingerprint, seen_at) VALUES (?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.MarkSeen: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) IsSeen(ctx context.Context, fingerprint string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_trade_ids WHERE fingerprint = ?`, fingerprint).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.IsSeen: %w", err)
	}
	return true, nil
}

// ExpireSeen borra los fingerprints vistos antes de olderThan, para que la
// tabla de dedup no crezca sin límite. Devuelve cuántas filas se borraron.
func (s *SQLiteStorage) ExpireSeen(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen_trade_ids WHERE seen_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("storage.ExpireSeen: %w", err)
	}
	return res.RowsAffected()
}
