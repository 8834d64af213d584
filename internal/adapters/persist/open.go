package persist

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mikey-austin/loop_utopia/internal/playlist"
)

// Config selects and configures a persistence backend.
type Config struct {
	Backend     string
	Path        string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisPrefix string
	PostgresDSN string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the playlist port for cfg.Backend (file|sqlite|redis|postgres|memory).
// The closer releases backend connections.
func Open(cfg Config) (playlist.Port, io.Closer, error) {
	key := playlist.StorageKey
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		port, err := NewFile(cfg.Path, key)
		if err != nil {
			return nil, nil, err
		}
		return port, nopCloser{}, nil
	case "sqlite":
		path := cfg.Path
		if path != "" && filepath.Ext(path) == "" {
			path = filepath.Join(path, "lu.db")
		}
		port, err := OpenSQLite(path, key)
		if err != nil {
			return nil, nil, err
		}
		return port, port, nil
	case "redis":
		port, err := OpenRedis(RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPass,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		}, key)
		if err != nil {
			return nil, nil, err
		}
		return port, port, nil
	case "postgres":
		port, err := OpenPostgres(cfg.PostgresDSN, key)
		if err != nil {
			return nil, nil, err
		}
		return port, port, nil
	case "memory":
		return playlist.NewMemoryPort("", false), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
