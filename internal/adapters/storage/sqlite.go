package storage

// sqlite.go — almacenamiento persistente del motor, SQLite puro Go (sin CGo).
//
// Todo el estado vive en una única base de datos: usuarios y whitelist,
// traders seguidos, trades ejecutados, dedup de fingerprints, posiciones,
// fondos, eventos de actividad y credenciales/preferencias. SQLite es
// single-writer — SetMaxOpenConns(1) serializa las escrituras y evita
// "database is locked" bajo concurrencia de varios workers.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polybacker/internal/domain"
	"github.com/alejandrodnm/polybacker/internal/ports"
)

var _ ports.Store = (*SQLiteStorage)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    address      TEXT PRIMARY KEY,
    role         TEXT NOT NULL DEFAULT 'user',
    display_name TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    last_login   DATETIME
);

CREATE TABLE IF NOT EXISTS nonces (
    value      TEXT PRIMARY KEY,
    address    TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    consumed   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS whitelist (
    address    TEXT PRIMARY KEY,
    added_at   DATETIME NOT NULL,
    added_by   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS followed_traders (
    user_address     TEXT NOT NULL,
    trader_address   TEXT NOT NULL,
    alias            TEXT NOT NULL DEFAULT '',
    added_at         DATETIME NOT NULL,
    active           INTEGER NOT NULL DEFAULT 1,
    total_copied     INTEGER NOT NULL DEFAULT 0,
    total_spent      REAL NOT NULL DEFAULT 0,
    copy_percentage  REAL,
    min_copy_size    REAL,
    max_copy_size    REAL,
    max_daily_spend  REAL,
    order_mode       TEXT NOT NULL DEFAULT '',
    max_slippage     REAL,
    PRIMARY KEY (user_address, trader_address)
);

CREATE TABLE IF NOT EXISTS trades (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp         DATETIME NOT NULL,
    user_address      TEXT NOT NULL,
    strategy          TEXT NOT NULL,
    token_id          TEXT NOT NULL DEFAULT '',
    side              TEXT NOT NULL,
    amount            REAL NOT NULL,
    price             REAL NOT NULL,
    market            TEXT NOT NULL DEFAULT '',
    expected_profit   REAL NOT NULL DEFAULT 0,
    copied_from       TEXT NOT NULL DEFAULT '',
    original_trade_id TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    notes             TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trades_user_ts     ON trades(user_address, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_trades_user_strat   ON trades(user_address, strategy, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_trades_copied_from  ON trades(copied_from, strategy, timestamp DESC);

CREATE TABLE IF NOT EXISTS seen_trade_ids (
    fingerprint TEXT PRIMARY KEY,
    seen_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_at ON seen_trade_ids(seen_at);

CREATE TABLE IF NOT EXISTS positions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_address    TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    market          TEXT NOT NULL DEFAULT '',
    side            TEXT NOT NULL,
    size            REAL NOT NULL DEFAULT 0,
    avg_entry_price REAL NOT NULL DEFAULT 0,
    current_price   REAL NOT NULL DEFAULT 0,
    unrealized_pnl  REAL NOT NULL DEFAULT 0,
    cost_basis      REAL NOT NULL DEFAULT 0,
    strategy        TEXT NOT NULL DEFAULT '',
    copied_from     TEXT NOT NULL DEFAULT '',
    opened_at       DATETIME NOT NULL,
    last_updated    DATETIME NOT NULL,
    status          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_user_token_status
    ON positions(user_address, token_id, status);
CREATE INDEX IF NOT EXISTS idx_positions_user_status ON positions(user_address, status);

CREATE TABLE IF NOT EXISTS funds (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_address TEXT NOT NULL,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    active        INTEGER NOT NULL DEFAULT 1,
    total_aum     REAL NOT NULL DEFAULT 0,
    nav_per_share REAL NOT NULL DEFAULT 1.0,
    total_shares  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fund_allocations (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    fund_id        INTEGER NOT NULL,
    trader_address TEXT NOT NULL,
    weight         REAL NOT NULL DEFAULT 0,
    active         INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_fund_allocations_fund ON fund_allocations(fund_id);

CREATE TABLE IF NOT EXISTS fund_investments (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    fund_id          INTEGER NOT NULL,
    investor_address TEXT NOT NULL,
    amount_invested  REAL NOT NULL,
    shares           REAL NOT NULL,
    invested_at      DATETIME NOT NULL,
    status           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fund_investments_investor ON fund_investments(investor_address);
CREATE INDEX IF NOT EXISTS idx_fund_investments_fund     ON fund_investments(fund_id);

CREATE TABLE IF NOT EXISTS fund_performance (
    fund_id           INTEGER NOT NULL,
    date              DATETIME NOT NULL,
    nav               REAL NOT NULL,
    daily_return      REAL NOT NULL DEFAULT 0,
    cumulative_return REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (fund_id, date)
);

CREATE TABLE IF NOT EXISTS fund_trades (
    fund_id        INTEGER NOT NULL,
    trade_id       INTEGER NOT NULL,
    trader_address TEXT NOT NULL DEFAULT '',
    amount         REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (fund_id, trade_id)
);
CREATE INDEX IF NOT EXISTS idx_fund_trades_fund ON fund_trades(fund_id);

CREATE TABLE IF NOT EXISTS engine_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp    DATETIME NOT NULL,
    user_address TEXT NOT NULL DEFAULT '',
    strategy     TEXT NOT NULL DEFAULT '',
    event_type   TEXT NOT NULL,
    message      TEXT NOT NULL DEFAULT '',
    details      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_user_ts ON engine_events(user_address, timestamp DESC);

CREATE TABLE IF NOT EXISTS api_credentials (
    user_address TEXT PRIMARY KEY,
    api_key      TEXT NOT NULL,
    api_secret   BLOB NOT NULL,
    api_secret_nonce BLOB NOT NULL,
    api_passphrase TEXT NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
    user_address TEXT PRIMARY KEY,
    data         TEXT NOT NULL DEFAULT '{}'
);
`

// SQLiteStorage implementa ports.Store usando SQLite (modernc.org/sqlite,
// pure Go, sin CGo).
type SQLiteStorage struct {
	db        *sql.DB
	secretKey [32]byte // clave AES-256-GCM para cifrar api_secret en reposo
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema. secretKey cifra api_credentials.api_secret en reposo.
func NewSQLiteStorage(path string, secretKey [32]byte) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db, secretKey: secretKey}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Users / auth / whitelist ---

func (s *SQLiteStorage) UpsertUser(ctx context.Context, address string, role domain.Role) (domain.User, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (address, role, created_at) VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET last_login = excluded.last_login
	`, address, role, now)
	if err != nil {
		return domain.User{}, fmt.Errorf("storage.UpsertUser: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE address = ?`, now, address); err != nil {
		return domain.User{}, fmt.Errorf("storage.UpsertUser: update last_login: %w", err)
	}

	u, ok, err := s.GetUser(ctx, address)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("storage.UpsertUser: user %s vanished after upsert", address)
	}
	return u, nil
}

func (s *SQLiteStorage) GetUser(ctx context.Context, address string) (domain.User, bool, error) {
	var u domain.User
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT address, role, display_name, created_at, last_login FROM users WHERE address = ?`,
		address,
	).Scan(&u.Address, &u.Role, &u.DisplayName, &u.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("storage.GetUser: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return u, true, nil
}

func (s *SQLiteStorage) CreateNonce(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nonces (value, created_at) VALUES (?, ?)`, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.CreateNonce: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ConsumeNonce(ctx context.Context, value, address string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nonces SET consumed = 1, address = ? WHERE value = ? AND consumed = 0`,
		address, value)
	if err != nil {
		return false, fmt.Errorf("storage.ConsumeNonce: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStorage) IsWhitelisted(ctx context.Context, address string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM whitelist WHERE address = ?`, address).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.IsWhitelisted: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) AddWhitelist(ctx context.Context, address, addedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO whitelist (address, added_at, added_by) VALUES (?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, address, time.Now().UTC(), addedBy)
	if err != nil {
		return false, fmt.Errorf("storage.AddWhitelist: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveWhitelist elimina una dirección. Se niega si address es el owner —
// el owner no puede auto-expulsarse.
func (s *SQLiteStorage) RemoveWhitelist(ctx context.Context, address string) error {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE address = ?`, address).Scan(&role)
	if err == nil && domain.Role(role) == domain.RoleOwner {
		return fmt.Errorf("storage.RemoveWhitelist: cannot remove the owner")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM whitelist WHERE address = ?`, address); err != nil {
		return fmt.Errorf("storage.RemoveWhitelist: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListWhitelist(ctx context.Context) ([]domain.WhitelistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, added_at, added_by FROM whitelist ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListWhitelist: %w", err)
	}
	defer rows.Close()

	var out []domain.WhitelistEntry
	for rows.Next() {
		var e domain.WhitelistEntry
		if err := rows.Scan(&e.Address, &e.AddedAt, &e.AddedBy); err != nil {
			return nil, fmt.Errorf("storage.ListWhitelist: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
