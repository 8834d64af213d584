package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Postgres stores keys in a kv table.
type Postgres struct {
	db  *sql.DB
	key string
}

// OpenPostgres connects using dsn and runs the kv migration.
func OpenPostgres(dsn string, key string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("storage key required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lu_kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Postgres{db: db, key: key}, nil
}

// Load implements playlist.Port.
func (p *Postgres) Load() (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	start := time.Now()
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM lu_kv WHERE key = $1`, p.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		observe("postgres", "load", start, nil)
		return "", false, nil
	}
	observe("postgres", "load", start, err)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Save implements playlist.Port.
func (p *Postgres) Save(data string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	start := time.Now()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO lu_kv (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.key, data)
	observe("postgres", "save", start, err)
	return err
}

// Close closes the database.
func (p *Postgres) Close() error {
	return p.db.Close()
}
