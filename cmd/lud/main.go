package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/adapters/idgen"
	"github.com/mikey-austin/loop_utopia/internal/adapters/mqttserver"
	"github.com/mikey-austin/loop_utopia/internal/adapters/persist"
	"github.com/mikey-austin/loop_utopia/internal/adapters/tlsconfig"
	"github.com/mikey-austin/loop_utopia/internal/lud"
	embeddedmqtt "github.com/mikey-austin/loop_utopia/internal/modules/embedded_mqtt"
	"github.com/mikey-austin/loop_utopia/internal/modules/httpapi"
	playernode "github.com/mikey-austin/loop_utopia/internal/modules/player_node"
	"github.com/mikey-austin/loop_utopia/internal/widget/vlc"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		logCaller   bool
		logUTC      bool
		logColor    bool
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := lud.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (console|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logCaller, "log-caller", false, "include caller in logs")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&logColor, "log-color", false, "enable colored log levels (console only)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := lud.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, overrides{
		broker:    broker,
		identity:  identity,
		topicBase: topicBase,
		logLevel:  logLevel,
		logFormat: logFormat,
		logOutput: logOutput,
		logCaller: logCaller,
		logUTC:    logUTC,
		logColor:  logColor,
	})

	if printConfig {
		if err := printResolvedConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if dryRun {
		if err := validateConfig(cfg, moduleOnly); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := lud.NewLogger(lud.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
		Caller: cfg.Server.LogCaller,
		UTC:    cfg.Server.LogUTC,
		Color:  cfg.Server.LogColor,
	})
	defer func() { _ = logger.Sync() }()

	if err := validateConfig(cfg, moduleOnly); err != nil {
		logger.Error("invalid config", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if needsClient(cfg, moduleOnly) && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("lud starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.String("storage", cfg.Modules.Player.Storage.Backend),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttserver.Client
	if needsClient(cfg, moduleOnly) {
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  idgen.ClientID("lud"),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLS:       tlsconfig.Files{CA: cfg.Server.TLS.CA, Cert: cfg.Server.TLS.Cert, Key: cfg.Server.TLS.Key},
			Timeout:   2 * time.Second,
			Will: &mqttserver.Will{
				Topic: lu.TopicPresence(cfg.Server.TopicBase, cfg.Modules.Player.NodeID),
			},
			Logger: logger.With(zap.String("component", "mqtt")),
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
	}

	modules, err := buildModules(cfg, client, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := lud.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

type overrides struct {
	broker    string
	identity  string
	topicBase string
	logLevel  string
	logFormat string
	logOutput string
	logCaller bool
	logUTC    bool
	logColor  bool
}

func applyOverrides(cfg *lud.Config, o overrides) {
	if o.broker != "" {
		cfg.Server.Broker = o.broker
	}
	if o.identity != "" {
		cfg.Server.Identity = o.identity
	}
	if o.topicBase != "" {
		cfg.Server.TopicBase = o.topicBase
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Server.LogFormat = o.logFormat
	}
	if o.logOutput != "" {
		cfg.Server.LogOutput = o.logOutput
	}
	if o.logCaller {
		cfg.Server.LogCaller = true
	}
	if o.logUTC {
		cfg.Server.LogUTC = true
	}
	if o.logColor {
		cfg.Server.LogColor = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = lu.BaseTopic
	}
	if cfg.Server.Identity == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Server.Identity = host
		}
	}
	if cfg.Modules.Player.NodeID == "" && cfg.Server.Identity != "" {
		cfg.Modules.Player.NodeID = "lu:player:" + cfg.Server.Identity
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func validateConfig(cfg lud.Config, moduleOnly string) error {
	if needsClient(cfg, moduleOnly) && cfg.Server.Broker == "" {
		return errors.New("broker is required")
	}
	player := cfg.Modules.Player
	if player.Enabled && (moduleOnly == "" || moduleOnly == "player") {
		if player.Widget.BaseURL == "" {
			return errors.New("modules.player.widget.base_url is required")
		}
		switch player.Storage.Backend {
		case "", "file", "sqlite", "memory":
		case "redis":
			if player.Storage.RedisAddr == "" {
				return errors.New("modules.player.storage.redis_addr is required")
			}
		case "postgres":
			if player.Storage.PostgresDSN == "" {
				return errors.New("modules.player.storage.postgres_dsn is required")
			}
		default:
			return fmt.Errorf("unknown storage backend %q", player.Storage.Backend)
		}
	}
	if cfg.Modules.HTTP.Enabled && !player.Enabled {
		return errors.New("modules.http requires modules.player")
	}
	return nil
}

func needsClient(cfg lud.Config, moduleOnly string) bool {
	if moduleOnly == "embedded_mqtt" {
		return false
	}
	return cfg.Modules.Player.Enabled && (moduleOnly == "" || moduleOnly == "player" || moduleOnly == "http")
}

func buildModules(cfg lud.Config, client *mqttserver.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]lud.ModuleRunner, error) {
	modules := []lud.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
			if err != nil {
				return nil, err
			}
			modules = append(modules, lud.ModuleRunner{
				Name: "embedded_mqtt",
				Run:  mod.Run,
			})
		}
	}

	var node *playernode.Module
	if cfg.Modules.Player.Enabled && (moduleOnly == "" || moduleOnly == "player" || moduleOnly == "http") {
		if client == nil {
			return nil, errors.New("player module requires an mqtt connection")
		}
		player := cfg.Modules.Player
		mod, err := playernode.NewModule(logger.With(zap.String("module", "player")), client, playernode.Config{
			NodeID:           player.NodeID,
			TopicBase:        cfg.Server.TopicBase,
			Name:             player.Name,
			PollInterval:     time.Duration(player.PollMS) * time.Millisecond,
			Volume:           player.Volume,
			DisableAutoplay:  player.DisableAutoplay,
			DefaultPlaylists: player.DefaultPlaylists,
			Widget: vlc.Config{
				BaseURL:       player.Widget.BaseURL,
				Username:      player.Widget.Username,
				Password:      player.Widget.Password,
				Timeout:       time.Duration(player.Widget.TimeoutMS) * time.Millisecond,
				WatchInterval: time.Duration(player.Widget.WatchMS) * time.Millisecond,
			},
			Storage: persist.Config{
				Backend:     player.Storage.Backend,
				Path:        player.Storage.Path,
				RedisAddr:   player.Storage.RedisAddr,
				RedisPass:   player.Storage.RedisPass,
				RedisDB:     player.Storage.RedisDB,
				RedisPrefix: player.Storage.RedisPrefix,
				PostgresDSN: player.Storage.PostgresDSN,
			},
		})
		if err != nil {
			return nil, err
		}
		node = mod
		modules = append(modules, lud.ModuleRunner{
			Name: "player",
			Run:  mod.Run,
		})
	}

	if cfg.Modules.HTTP.Enabled && node != nil {
		if moduleOnly == "" || moduleOnly == "http" {
			mod, err := httpapi.NewModule(logger.With(zap.String("module", "http")), node, httpapi.Config{
				Listen: cfg.Modules.HTTP.Listen,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, lud.ModuleRunner{
				Name: "http",
				Run:  mod.Run,
			})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg lud.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.Player.Enabled {
		out = append(out, "player")
	}
	if cfg.Modules.HTTP.Enabled {
		out = append(out, "http")
	}
	return out
}

// printResolvedConfig writes the effective config as TOML with secrets masked.
func printResolvedConfig(w io.Writer, cfg lud.Config) error {
	masked := cfg
	mask := func(v *string) {
		if *v != "" {
			*v = "********"
		}
	}
	mask(&masked.Server.Auth.Pass)
	mask(&masked.Modules.Player.Widget.Password)
	mask(&masked.Modules.Player.Storage.RedisPass)
	mask(&masked.Modules.Player.Storage.PostgresDSN)
	mask(&masked.Modules.EmbeddedMQTT.Password)
	return toml.NewEncoder(w).Encode(masked)
}

func embeddedConfig(cfg lud.Config) embeddedmqtt.Config {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.Config{
		Listen:         e.Listen,
		AllowAnonymous: e.AllowAnonymous,
		Username:       e.Username,
		Password:       e.Password,
		TopicBase:      cfg.Server.TopicBase,
		TLS:            tlsconfig.Files{CA: e.TLSCA, Cert: e.TLSCert, Key: e.TLSKey},
	}
}

func embeddedBrokerURL(cfg lud.Config) string {
	e := embeddedConfig(cfg)
	return embeddedmqtt.BrokerURL(e.Listen, e.TLS.Enabled())
}

func startEmbeddedBroker(ctx context.Context, cfg lud.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
