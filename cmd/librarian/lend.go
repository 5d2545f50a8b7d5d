package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/shell"
)

var (
	lendDays     int
	retryAttempt int
)

var lendCmd = &cobra.Command{
	Use:   "lend [book-id] [user-id]",
	Short: "Lend one copy of a book to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID, err := parseID("book", args[0])
		if err != nil {
			return err
		}

		userID, err := parseID("user", args[1])
		if err != nil {
			return err
		}

		days := lendDays
		if !cmd.Flags().Changed("days") {
			days = cfg.DefaultLoanDays
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			var loan lending.Loan

			meta, err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
				var lendErr error
				loan, lendErr = rt.engine.Lend(ctx, bookID, userID, days)

				return lendErr
			}, rt.retryOptions("lend")...)

			logRetries("lend", meta)

			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), loan)
		})
	},
}

var returnCmd = &cobra.Command{
	Use:   "return [loan-id]",
	Short: "Return a lent copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loanID, err := parseID("loan", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			var loan lending.Loan

			meta, err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
				var returnErr error
				loan, returnErr = rt.engine.ReturnBook(ctx, loanID)

				return returnErr
			}, rt.retryOptions("return")...)

			logRetries("return", meta)

			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), loan)
		})
	},
}

func (rt *runtime) retryOptions(operation string) []shell.RetryOption {
	options := []shell.RetryOption{shell.WithMaxAttempts(retryAttempt)}

	if rt.metrics != nil {
		options = append(options, shell.WithMetrics(rt.metrics, operation))
	}

	return options
}

func logRetries(operation string, meta shell.RetryMetrics) {
	if meta.Attempts > 1 {
		slog.Info("retried after lock contention",
			"operation", operation,
			"attempts", meta.Attempts,
			"total_delay_ms", meta.TotalDelay.Milliseconds(),
			"last_error_type", meta.LastErrorType)
	}
}

func init() {
	rootCmd.AddCommand(lendCmd, returnCmd)

	lendCmd.Flags().IntVarP(&lendDays, "days", "d", 0, "Loan duration in days (default from config)")

	for _, cmd := range []*cobra.Command{lendCmd, returnCmd} {
		cmd.Flags().IntVar(&retryAttempt, "attempts", 6, "Attempts when the book row is locked by someone else")
	}
}
