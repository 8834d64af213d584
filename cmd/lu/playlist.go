package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/loop_utopia/internal/core"
)

func playlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "playlist",
		Aliases: []string{"pl"},
		Short:   "Playlist commands",
	}

	cmd.AddCommand(playlistListCommand())
	cmd.AddCommand(playlistShowCommand())
	cmd.AddCommand(playlistCreateCommand())
	cmd.AddCommand(playlistDeleteCommand())
	cmd.AddCommand(playlistSelectCommand())
	cmd.AddCommand(playlistAddCommand())
	cmd.AddCommand(playlistAddCurrentCommand())
	cmd.AddCommand(playlistRemoveCommand())
	cmd.AddCommand(playlistShuffleCommand())
	cmd.AddCommand(playlistPlayCommand())

	return cmd
}

func playlistListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.PlaylistList(ctx, app.selector)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

// playlistResultCommand runs a playlist call and prints the playlist it returns.
func playlistResultCommand(cmd *cobra.Command, call func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error)) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		app := fromContext(cmd)
		ctx, cancel := withTimeout(context.Background(), app.timeout)
		defer cancel()

		result, err := call(ctx, app, args)
		if err != nil {
			return err
		}
		if app.quiet {
			return nil
		}
		return app.printer.Print(result)
	}
	return cmd
}

func playlistShowCommand() *cobra.Command {
	return playlistResultCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "Show a playlist (the active one by default)",
		Args:  cobra.RangeArgs(0, 1),
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		return app.service.PlaylistShow(ctx, app.selector, optionalArg(args, 0))
	})
}

func playlistCreateCommand() *cobra.Command {
	return playlistResultCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a playlist and select it",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		return app.service.PlaylistCreate(ctx, app.selector, args[0])
	})
}

func playlistDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := app.service.PlaylistDelete(ctx, app.selector, args[0]); err != nil {
				return err
			}
			return app.done("deleted " + args[0])
		},
	}
}

func playlistSelectCommand() *cobra.Command {
	return playlistResultCommand(&cobra.Command{
		Use:   "select <name>",
		Short: "Make a playlist active",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		return app.service.PlaylistSelect(ctx, app.selector, args[0])
	})
}

func playlistAddCommand() *cobra.Command {
	var name string
	var title string

	cmd := playlistResultCommand(&cobra.Command{
		Use:   "add <url>",
		Short: "Append a video to a playlist",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		return app.service.PlaylistAdd(ctx, app.selector, name, args[0], title)
	})
	cmd.Flags().StringVarP(&name, "name", "n", "", "playlist name (default active)")
	cmd.Flags().StringVar(&title, "title", "", "track title")
	return cmd
}

func playlistAddCurrentCommand() *cobra.Command {
	var name string

	cmd := playlistResultCommand(&cobra.Command{
		Use:   "add-current",
		Short: "Append the loaded video to a playlist",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		return app.service.PlaylistAddCurrent(ctx, app.selector, name)
	})
	cmd.Flags().StringVarP(&name, "name", "n", "", "playlist name (default active)")
	return cmd
}

func playlistRemoveCommand() *cobra.Command {
	var name string

	cmd := playlistResultCommand(&cobra.Command{
		Use:   "remove <index>",
		Short: "Remove a track by index",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		index, err := parseIndex(args[0])
		if err != nil {
			return core.PlaylistResult{}, err
		}
		return app.service.PlaylistRemove(ctx, app.selector, name, index)
	})
	cmd.Flags().StringVarP(&name, "name", "n", "", "playlist name (default active)")
	return cmd
}

func playlistShuffleCommand() *cobra.Command {
	return playlistResultCommand(&cobra.Command{
		Use:   "shuffle [name]",
		Short: "Shuffle a playlist in place",
		Args:  cobra.RangeArgs(0, 1),
	}, func(ctx context.Context, app *app, args []string) (core.PlaylistResult, error) {
		return app.service.PlaylistShuffle(ctx, app.selector, optionalArg(args, 0))
	})
}

func playlistPlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play <name> [index]",
		Short: "Select a playlist and play from a track",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if len(args) == 2 {
				var err error
				index, err = parseIndex(args[1])
				if err != nil {
					return err
				}
			}
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if err := app.service.PlaylistPlay(ctx, app.selector, args[0], index); err != nil {
				return err
			}
			return app.done("playing " + args[0] + " #" + strconv.Itoa(index))
		},
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 0 {
		return 0, &core.CLIError{Code: core.ExitUsage, Msg: "index must be a non-negative integer"}
	}
	return index, nil
}
