package lud

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the top-level configuration for lud.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogCaller bool       `toml:"log_caller"`
	LogUTC    bool       `toml:"log_utc"`
	LogColor  bool       `toml:"log_color"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Player       PlayerConfig       `toml:"player"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
	HTTP         HTTPConfig         `toml:"http"`
}

// PlayerConfig configures the player module.
type PlayerConfig struct {
	Enabled          bool          `toml:"enabled"`
	NodeID           string        `toml:"node_id"`
	Name             string        `toml:"name"`
	PollMS           int64         `toml:"poll_ms"`
	Volume           int           `toml:"volume"`
	DisableAutoplay  bool          `toml:"disable_autoplay"`
	DefaultPlaylists []string      `toml:"default_playlists"`
	Widget           WidgetConfig  `toml:"widget"`
	Storage          StorageConfig `toml:"storage"`
}

// WidgetConfig configures the VLC widget.
type WidgetConfig struct {
	BaseURL   string `toml:"base_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TimeoutMS int64  `toml:"timeout_ms"`
	WatchMS   int64  `toml:"watch_ms"`
}

// StorageConfig selects the playlist persistence backend.
type StorageConfig struct {
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	RedisAddr   string `toml:"redis_addr"`
	RedisPass   string `toml:"redis_password"`
	RedisDB     int    `toml:"redis_db"`
	RedisPrefix string `toml:"redis_prefix"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// HTTPConfig configures the status API.
type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LoadConfig loads a config file from path and applies secrets from the
// environment. A .env file next to the config is read first if present.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LU_MQTT_PASS")); v != "" {
		cfg.Server.Auth.Pass = v
	}
	if v := strings.TrimSpace(os.Getenv("LU_REDIS_PASSWORD")); v != "" {
		cfg.Modules.Player.Storage.RedisPass = v
	}
	if v := strings.TrimSpace(os.Getenv("LU_POSTGRES_DSN")); v != "" {
		cfg.Modules.Player.Storage.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("LU_VLC_PASSWORD")); v != "" {
		cfg.Modules.Player.Widget.Password = v
	}
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "lu", "lud.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lu", "lud.toml"), nil
}
