package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/loop_utopia/internal/core"
)

func lsCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.ListNodes(ctx, kind)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind")

	return cmd
}

func statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show player status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if watch {
				return watchStatus(app)
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.Status(ctx, app.selector)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "watch status updates")

	return cmd
}

func watchStatus(app *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := withTimeout(ctx, app.timeout)
	initial, err := app.service.Status(initCtx, app.selector)
	cancel()
	if err != nil {
		return err
	}
	if err := app.printer.Print(initial); err != nil {
		return err
	}

	states, events, errs, err := app.service.WatchStatus(ctx, app.selector)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := app.printer.Print(core.StatusResult{Player: initial.Player, State: state}); err != nil {
				return err
			}
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := app.printer.Print(evt); err != nil {
				return err
			}
		case err := <-errs:
			if err != nil {
				return err
			}
		}
	}
}
