package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
)

var sweepTimeout time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run or inspect the expiry sweeps",
}

var sweepRunCmd = &cobra.Command{
	Use:       "run [subscriptions|advertisements|all]",
	Short:     "Run sweeps now and print their summaries",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{sweep.Subscriptions, sweep.Advertisements, "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := sweepNames(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
		defer cancel()

		svc, err := connect(ctx)
		if err != nil {
			return err
		}
		summaries, err := runSweeps(ctx, svc.Sweeps, names)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summaries)
	},
}

var sweepLastCmd = &cobra.Command{
	Use:   "last [subscriptions|advertisements]",
	Short: "Print the stored summary of the latest run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != sweep.Subscriptions && args[0] != sweep.Advertisements {
			return fmt.Errorf("unknown sweep %q", args[0])
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		svc, err := connect(ctx)
		if err != nil {
			return err
		}
		body, err := svc.Sweeps.LastRun(ctx, args[0])
		if errors.Is(err, cache.ErrNoLastRun) {
			fmt.Fprintf(cmd.OutOrStdout(), "sweep %s has not run yet\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return err
	},
}

func init() {
	sweepRunCmd.Flags().DurationVar(&sweepTimeout, "timeout", 5*time.Minute, "abort the sweeps after this long")
	sweepCmd.AddCommand(sweepRunCmd, sweepLastCmd)
}

func sweepNames(arg string) ([]string, error) {
	switch arg {
	case sweep.Subscriptions, sweep.Advertisements:
		return []string{arg}, nil
	case "all":
		return []string{sweep.Subscriptions, sweep.Advertisements}, nil
	default:
		return nil, fmt.Errorf("unknown sweep %q", arg)
	}
}

// SweepRunner runs one sweep by name.
type SweepRunner interface {
	Run(ctx context.Context, name string) (*sweep.Summary, error)
}

// runSweeps runs the named sweeps concurrently. They hold separate locks.
func runSweeps(ctx context.Context, runner SweepRunner, names []string) ([]*sweep.Summary, error) {
	summaries := make([]*sweep.Summary, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			s, err := runner.Run(ctx, name)
			if err != nil {
				return fmt.Errorf("sweep %s: %w", name, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
