package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey-austin/loop_utopia/internal/playlist"
)

func TestFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	port, err := NewFile(filepath.Join(root, "nested"), playlist.StorageKey)
	if err != nil {
		t.Fatalf("new file: %v", err)
	}

	if _, ok, err := port.Load(); err != nil || ok {
		t.Fatalf("expected absent data, ok=%v err=%v", ok, err)
	}
	if err := port.Save(`{"a":[]}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, ok, err := port.Load()
	if err != nil || !ok || data != `{"a":[]}` {
		t.Fatalf("unexpected load: %q %v %v", data, ok, err)
	}

	entries, err := os.ReadDir(filepath.Dir(port.Path()))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be renamed away, got %d entries", len(entries))
	}
}

func TestNewFileValidation(t *testing.T) {
	if _, err := NewFile("", "playlists"); err == nil {
		t.Fatalf("expected error for empty root")
	}
	if _, err := NewFile(t.TempDir(), " "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestSafeFilename(t *testing.T) {
	if got := safeFilename("a:b/c d"); got != "a_b_c_d" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	port, err := OpenSQLite(filepath.Join(t.TempDir(), "lu.db"), playlist.StorageKey)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer port.Close()

	if _, ok, err := port.Load(); err != nil || ok {
		t.Fatalf("expected absent data, ok=%v err=%v", ok, err)
	}
	for _, payload := range []string{`{"a":[]}`, `{"b":[]}`} {
		if err := port.Save(payload); err != nil {
			t.Fatalf("save: %v", err)
		}
		data, ok, err := port.Load()
		if err != nil || !ok || data != payload {
			t.Fatalf("unexpected load: %q %v %v", data, ok, err)
		}
	}
}

func TestStoreOverFilePort(t *testing.T) {
	port, err := NewFile(t.TempDir(), playlist.StorageKey)
	if err != nil {
		t.Fatalf("new file: %v", err)
	}
	store := playlist.NewStore(port, playlist.Options{})
	store.AddTrack("favorites", playlist.Track{ID: "dQw4w9WgXcQ", Title: "Never"})

	reloaded := playlist.NewStore(port, playlist.Options{})
	if !store.Snapshot().Equal(reloaded.Snapshot()) {
		t.Fatalf("expected collection to survive reload")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("LU_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LU_TEST_REDIS_ADDR not set")
	}
	port, err := OpenRedis(RedisConfig{Addr: addr, KeyPrefix: "lu-test:"}, playlist.StorageKey)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer port.Close()
	if err := port.Save(`{"r":[]}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, ok, err := port.Load()
	if err != nil || !ok || data != `{"r":[]}` {
		t.Fatalf("unexpected load: %q %v %v", data, ok, err)
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("LU_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LU_TEST_POSTGRES_DSN not set")
	}
	port, err := OpenPostgres(dsn, "lu-test-playlists")
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer port.Close()
	if err := port.Save(`{"p":[]}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, ok, err := port.Load()
	if err != nil || !ok || data != `{"p":[]}` {
		t.Fatalf("unexpected load: %q %v %v", data, ok, err)
	}
}

func TestOpenBackends(t *testing.T) {
	port, closer, err := Open(Config{Backend: "memory"})
	if err != nil || port == nil || closer == nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, _, err := Open(Config{Backend: "file", Path: t.TempDir()}); err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, _, err := Open(Config{Backend: "floppy"}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
