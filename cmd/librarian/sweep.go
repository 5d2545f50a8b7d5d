package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Notify the borrowers of all overdue loans now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseSweepTime(sweepAt, time.Now)
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			sweeper, err := rt.sweeper()
			if err != nil {
				return err
			}

			report, err := sweeper.Sweep(ctx, now)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

// parseSweepTime returns clock() for an empty value and the RFC 3339 time otherwise.
func parseSweepTime(raw string, clock func() time.Time) (time.Time, error) {
	if raw == "" {
		return clock(), nil
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, lending.Invalidf("--at %q is not an RFC 3339 time", raw)
	}

	return at, nil
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "Sweep as of this RFC 3339 time instead of now")
}
