package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mikey-austin/loop_utopia/internal/adapters/clock"
	"github.com/mikey-austin/loop_utopia/internal/adapters/config"
	"github.com/mikey-austin/loop_utopia/internal/adapters/idgen"
	"github.com/mikey-austin/loop_utopia/internal/adapters/mqtt"
	"github.com/mikey-austin/loop_utopia/internal/adapters/output"
	"github.com/mikey-austin/loop_utopia/internal/adapters/tlsconfig"
	"github.com/mikey-austin/loop_utopia/internal/core"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

type app struct {
	service  core.Service
	printer  output.Printer
	selector string
	quiet    bool
	json     bool
	timeout  time.Duration
	close    func()
}

func main() {
	root := rootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "lu",
		Short:        "Loop Utopia CLI",
		SilenceUsage: true,
	}

	var (
		broker    string
		topicBase string
		identity  string
		player    string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		noColor   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", lu.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().StringVarP(&player, "player", "p", "", "player selector (node id, name or alias)")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == lu.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if userOpt == "" {
			userOpt = cfg.Username
		}
		if passOpt == "" {
			passOpt = cfg.Password
		}
		tlsFiles := tlsconfig.Files{CA: tlsCA, Cert: tlsCert, Key: tlsKey}
		if !tlsFiles.Enabled() {
			tlsFiles = tlsconfig.Files{CA: cfg.TLS.CA, Cert: cfg.TLS.Cert, Key: cfg.TLS.Key}
		}
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}
		if cfg.Aliases == nil {
			cfg.Aliases = map[string]string{}
		}

		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  idgen.ClientID("lu"),
			Username:  userOpt,
			Password:  passOpt,
			TLS:       tlsFiles,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "connect", err)
		}

		coreCfg := core.Config{
			Broker:    broker,
			Identity:  identity,
			TopicBase: topicBase,
			Aliases:   cfg.Aliases,
			Defaults:  core.Defaults{Player: cfg.Defaults.Player},
		}

		service := core.Service{
			Broker:   mqttClient,
			Resolver: core.Resolver{Presence: mqttClient, Config: coreCfg},
			Clock:    clock.Clock{},
			IDGen:    idgen.Generator{},
			Config:   coreCfg,
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service:  service,
			printer:  output.New(jsonOut, os.Stdout),
			selector: player,
			quiet:    quiet,
			json:     jsonOut,
			timeout:  timeout,
			close:    mqttClient.Close,
		}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a := fromContext(cmd); a != nil && a.close != nil {
			a.close()
		}
	}

	root.AddCommand(lsCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(loadCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(startCommand())
	root.AddCommand(endCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(rangeCommand())
	root.AddCommand(repeatCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(playlistCommand())

	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// done prints a short confirmation unless quiet or json output is on.
func (a *app) done(msg string) error {
	if a.quiet {
		return nil
	}
	if a.json {
		return a.printer.Print(map[string]any{"ok": true})
	}
	return a.printer.Print(msg)
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "lu-unknown"
}

// parseSwitch reads an on|off argument.
func parseSwitch(arg string) (bool, error) {
	switch arg {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, &core.CLIError{Code: core.ExitUsage, Msg: "expected on or off", Err: errors.New(arg)}
	}
}
