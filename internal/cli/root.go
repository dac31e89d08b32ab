// Package cli wires the cobra root command: a persistent --now flag that
// runs a single backup cycle immediately, and the default serve
// behavior that runs the scheduler and health server until terminated.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baktainer/baktainer/internal/app"
)

var runNow bool

// NewRootCommand builds the root command bound to a (already-wired) App.
func NewRootCommand(a *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:   "baktainer",
		Short: "Scheduled, label-driven database backups for containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runNow {
				return runOnce(a)
			}
			return serve(a)
		},
	}
	root.PersistentFlags().BoolVarP(&runNow, "now", "N", false, "run one backup cycle immediately and exit, instead of starting the scheduler")
	return root
}

func runOnce(a *app.App) error {
	result, err := a.Scheduler.RunNow(context.Background())
	if err != nil {
		return err
	}
	if result.Aborted {
		return fmt.Errorf("backup cycle aborted: %s", result.Reason)
	}
	fmt.Printf("backup cycle complete: %d succeeded, %d failed\n", result.Succeeded, result.Failed)
	return nil
}

func serve(a *app.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case <-ctx.Done():
		a.Log.Info().Msg("shutdown signal received")
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Execute builds and runs the root command, exiting the process with a
// nonzero status on error.
func Execute(a *app.App) {
	if err := NewRootCommand(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
