package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *SQLiteStorage) RecordEvent(ctx context.Context, e domain.EngineEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_events (timestamp, user_address, strategy, event_type, message, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Timestamp, e.UserAddress, e.Strategy, e.EventType, e.Message, e.Details)
	if err != nil {
		return fmt.Errorf("storage.RecordEvent: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.EngineEvent, error) {
	q := `SELECT id, timestamp, user_address, strategy, event_type, message, details
		FROM engine_events WHERE user_address = ?`
	args := []any{filter.UserAddress}
	if filter.Strategy != "" {
		q += ` AND strategy = ?`
		args = append(args, filter.Strategy)
	}
	q += ` ORDER BY timestamp DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListEvents: %w", err)
	}
	defer rows.Close()

	var out []domain.EngineEvent
	for rows.Next() {
		var e domain.EngineEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserAddress, &e.Strategy, &e.EventType,
			&e.Message, &e.Details); err != nil {
			return nil, fmt.Errorf("storage.ListEvents: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
