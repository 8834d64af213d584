package lud

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("LU_MQTT_PASS", "")
	t.Setenv("LU_VLC_PASSWORD", "")
	tmp := t.TempDir()
	path := filepath.Join(tmp, "lud.toml")
	data := []byte("" +
		"[server]\n" +
		"broker = \"mqtt://localhost\"\n" +
		"identity = \"lud-test\"\n" +
		"\n" +
		"[modules.player]\n" +
		"enabled = true\n" +
		"node_id = \"lu:player:den\"\n" +
		"default_playlists = [\"favorites\", \"warmups\"]\n" +
		"\n" +
		"[modules.player.widget]\n" +
		"base_url = \"http://127.0.0.1:8080\"\n" +
		"password = \"from-toml\"\n" +
		"\n" +
		"[modules.player.storage]\n" +
		"backend = \"sqlite\"\n" +
		"path = \"/tmp/lud\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Broker != "mqtt://localhost" {
		t.Fatalf("expected broker")
	}
	player := cfg.Modules.Player
	if !player.Enabled || player.NodeID != "lu:player:den" {
		t.Fatalf("unexpected player config %+v", player)
	}
	if len(player.DefaultPlaylists) != 2 || player.DefaultPlaylists[1] != "warmups" {
		t.Fatalf("unexpected default playlists %v", player.DefaultPlaylists)
	}
	if player.Widget.Password != "from-toml" {
		t.Fatalf("expected toml password, got %q", player.Widget.Password)
	}
	if player.Storage.Backend != "sqlite" || player.Storage.Path != "/tmp/lud" {
		t.Fatalf("unexpected storage %+v", player.Storage)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "lud.toml")
	data := []byte("[server]\n[server.auth]\npass = \"toml\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LU_MQTT_PASS", "env-secret")
	t.Setenv("LU_POSTGRES_DSN", "postgres://lu@localhost/lu")
	t.Setenv("LU_REDIS_PASSWORD", "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Auth.Pass != "env-secret" {
		t.Fatalf("expected env password, got %q", cfg.Server.Auth.Pass)
	}
	if cfg.Modules.Player.Storage.PostgresDSN != "postgres://lu@localhost/lu" {
		t.Fatalf("expected env dsn, got %q", cfg.Modules.Player.Storage.PostgresDSN)
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "lud.toml")
	if err := os.WriteFile(path, []byte("[server]\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte("LU_REDIS_PASSWORD=dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv does not override variables that are already set.
	t.Setenv("LU_REDIS_PASSWORD", "")
	os.Unsetenv("LU_REDIS_PASSWORD")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Modules.Player.Storage.RedisPass != "dotenv" {
		t.Fatalf("expected dotenv password, got %q", cfg.Modules.Player.Storage.RedisPass)
	}
}

func TestLoadConfigRejectsDirectory(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected directory error")
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected missing path error")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("default config path: %v", err)
	}
	if path != "/tmp/xdg/lu/lud.toml" {
		t.Fatalf("unexpected path %q", path)
	}
}
