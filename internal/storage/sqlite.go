package storage

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS acquisition_sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	device       TEXT NOT NULL,
	trigger_mode TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	frames       INTEGER NOT NULL DEFAULT 0,
	started_at   TIMESTAMP NOT NULL,
	ended_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS subscription_stats (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	device        TEXT NOT NULL,
	connection_id TEXT NOT NULL,
	closed_reason TEXT NOT NULL,
	pushed        INTEGER NOT NULL,
	delivered     INTEGER NOT NULL,
	dropped       INTEGER NOT NULL,
	closed_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS api_tokens (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	token_hash TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	revoked    INTEGER NOT NULL DEFAULT 0
);
`

// Client wraps the embedded sqlite database holding acquisition
// bookkeeping and API tokens. Frame payloads are never stored.
type Client struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewClient(path string, logger *zap.Logger) (*Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent recorders.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Client{db: db, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
