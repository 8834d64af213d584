// Package embeddedmqtt runs a mochi broker inside lud for single-host setups.
package embeddedmqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey-austin/loop_utopia/internal/adapters/tlsconfig"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// DefaultListen is used when no listen address is configured.
const DefaultListen = "127.0.0.1:1883"

// Config configures the embedded MQTT broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
	TopicBase      string
	TLS            tlsconfig.Files
}

// Module runs an embedded MQTT broker.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = lu.BaseTopic
	}

	server, err := newServer(log, cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg}, nil
}

// Run starts the embedded broker and blocks until ctx is done or the
// listener fails.
func (m *Module) Run(ctx context.Context) error {
	listenerConfig := listeners.Config{ID: "tcp-embedded", Address: m.config.Listen}
	tlsConfig, err := tlsconfig.Server(m.config.TLS)
	if err != nil {
		return err
	}
	listenerConfig.TLSConfig = tlsConfig

	listener := listeners.NewTCP(listenerConfig)
	if err := m.server.AddListener(listener); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.Serve()
	}()
	m.log.Info("embedded mqtt listening",
		zap.String("listen", m.config.Listen),
		zap.Bool("tls", tlsConfig != nil),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		<-ctx.Done()
	}
	return m.server.Close()
}

func newServer(log *zap.Logger, cfg Config) (*mqtt.Server, error) {
	options := &mqtt.Options{InlineClient: true, Logger: newSlogLogger(log)}
	server := mqtt.New(options)

	if cfg.AllowAnonymous {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	} else if cfg.Username != "" {
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: newLedger(cfg)}); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}

	return server, nil
}

// newLedger grants the configured user read and write on the protocol
// topics only.
func newLedger(cfg Config) *auth.Ledger {
	filter := auth.RString(strings.TrimSuffix(cfg.TopicBase, "/") + "/#")
	return &auth.Ledger{
		Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
		ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{filter: auth.ReadWrite}}},
	}
}

// BrokerURL returns the broker URL for a listen address.
func BrokerURL(listen string, tlsEnabled bool) string {
	if strings.TrimSpace(listen) == "" {
		listen = DefaultListen
	}
	scheme := "mqtt"
	if tlsEnabled {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s", scheme, listen)
}
