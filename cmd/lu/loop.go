package main

import (
	"context"

	"github.com/spf13/cobra"
)

func rangeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Repeat range commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <start> <end>",
		Short: "Set the loop window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := app.service.SetRepeatRange(ctx, app.selector, args[0], args[1]); err != nil {
				return err
			}
			return app.done("range " + args[0] + "-" + args[1])
		},
	})
	cmd.AddCommand(switchCommand("on", "Loop the range", true, func(ctx context.Context, app *app, enabled bool) error {
		return app.service.SetRepeatRangeEnabled(ctx, app.selector, enabled)
	}))
	cmd.AddCommand(switchCommand("off", "Stop looping the range", false, func(ctx context.Context, app *app, enabled bool) error {
		return app.service.SetRepeatRangeEnabled(ctx, app.selector, enabled)
	}))

	return cmd
}

func switchCommand(use string, short string, enabled bool, call func(ctx context.Context, app *app, enabled bool) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := call(ctx, app, enabled); err != nil {
				return err
			}
			return app.done(cmd.Parent().Name() + " " + use)
		},
	}
}

// toggleFlagCommand builds `<name> on|off`.
func toggleFlagCommand(use string, short string, call func(ctx context.Context, app *app, enabled bool) error) *cobra.Command {
	return &cobra.Command{
		Use:       use + " <on|off>",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := call(ctx, app, enabled); err != nil {
				return err
			}
			return app.done(use + " " + args[0])
		},
	}
}

func repeatCommand() *cobra.Command {
	return toggleFlagCommand("repeat", "Repeat the current track", func(ctx context.Context, app *app, enabled bool) error {
		return app.service.SetRepeatTrack(ctx, app.selector, enabled)
	})
}

func shuffleCommand() *cobra.Command {
	return toggleFlagCommand("shuffle", "Set the shuffle preference", func(ctx context.Context, app *app, enabled bool) error {
		return app.service.SetShuffle(ctx, app.selector, enabled)
	})
}
