package main

import (
	"context"

	"github.com/spf13/cobra"
)

func loadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <url>",
		Short: "Load a video from a share, embed or watch link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Load(ctx, app.selector, args[0])
			if err != nil {
				return err
			}
			if app.quiet {
				return nil
			}
			return app.printer.Print(result)
		},
	}
}

// simpleCommand builds a no-argument command that calls one service method.
func simpleCommand(use string, short string, call func(ctx context.Context, app *app) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := call(ctx, app); err != nil {
				return err
			}
			return app.done(use)
		},
	}
}

func playCommand() *cobra.Command {
	return simpleCommand("play", "Resume playback", func(ctx context.Context, app *app) error {
		return app.service.Play(ctx, app.selector)
	})
}

func pauseCommand() *cobra.Command {
	return simpleCommand("pause", "Pause playback", func(ctx context.Context, app *app) error {
		return app.service.Pause(ctx, app.selector)
	})
}

func toggleCommand() *cobra.Command {
	return simpleCommand("toggle", "Toggle playback", func(ctx context.Context, app *app) error {
		return app.service.Toggle(ctx, app.selector)
	})
}

func startCommand() *cobra.Command {
	return simpleCommand("start", "Skip to the start", func(ctx context.Context, app *app) error {
		return app.service.SkipStart(ctx, app.selector)
	})
}

func endCommand() *cobra.Command {
	return simpleCommand("end", "Skip to one second before the end", func(ctx context.Context, app *app) error {
		return app.service.SkipEnd(ctx, app.selector)
	})
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <pos|+off|-off>",
		Short: "Seek to a position (seconds, m:ss or h:mm:ss)",
		Example: "  lu seek 1:30\n" +
			"  lu seek +10\n" +
			"  lu seek -- -15",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := app.service.Seek(ctx, app.selector, args[0]); err != nil {
				return err
			}
			return app.done("seek " + args[0])
		},
	}
}

func volumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vol <0..100|+n|-n>",
		Short: "Set volume",
		Example: "  lu vol 40\n" +
			"  lu vol +5\n" +
			"  lu vol -- -10",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := app.service.SetVolume(ctx, app.selector, args[0]); err != nil {
				return err
			}
			return app.done("volume " + args[0])
		},
	}
}
