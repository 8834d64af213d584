package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds CLI configuration from config.toml.
type Config struct {
	Broker    string            `toml:"broker"`
	Identity  string            `toml:"identity"`
	TopicBase string            `toml:"topic_base"`
	Username  string            `toml:"username"`
	Password  string            `toml:"password"`
	TLS       TLS               `toml:"tls"`
	Aliases   map[string]string `toml:"aliases"`
	Defaults  Defaults          `toml:"defaults"`
}

// TLS names PEM files for the broker connection.
type TLS struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// Defaults defines default selector values.
type Defaults struct {
	Player string `toml:"player"`
}

// Load loads config.toml if present. Missing file returns an empty config.
// LU_BROKER, LU_PLAYER and LU_MQTT_PASS override the file.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, err
	case info.IsDir():
		return Config{}, errors.New("config path is a directory")
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	if v := os.Getenv("LU_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := os.Getenv("LU_PLAYER"); v != "" {
		cfg.Defaults.Player = v
	}
	if v := os.Getenv("LU_MQTT_PASS"); v != "" {
		cfg.Password = v
	}
	return cfg, nil
}

// Path returns the config.toml location.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "lu", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lu", "config.toml"), nil
}
