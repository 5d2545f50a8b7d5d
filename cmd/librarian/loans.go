package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var eventualReads bool

var loansCmd = &cobra.Command{
	Use:   "loans",
	Short: "Query loans",
}

var loansActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "List all loans that are not returned",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			loans, err := rt.engine.GetActiveLoans(readContext(ctx))
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), loans)
		})
	},
}

var loansUserCmd = &cobra.Command{
	Use:   "user [user-id]",
	Short: "List all loans of a user, returned ones included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID("user", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			loans, err := rt.engine.GetLoansByUser(readContext(ctx), userID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), loans)
		})
	},
}

var loansGetCmd = &cobra.Command{
	Use:   "get [loan-id]",
	Short: "Show one loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loanID, err := parseID("loan", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			loan, err := rt.engine.GetLoanByID(readContext(ctx), loanID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), loan)
		})
	},
}

var loansHistoryCmd = &cobra.Command{
	Use:   "history [loan-id]",
	Short: "Show the ledger events of one loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loanID, err := parseID("loan", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			events, err := rt.engine.LoanHistory(readContext(ctx), loanID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), events)
		})
	},
}

func readContext(ctx context.Context) context.Context {
	if eventualReads {
		return lending.WithEventualConsistency(ctx)
	}

	return ctx
}

func init() {
	rootCmd.AddCommand(loansCmd)
	loansCmd.AddCommand(loansActiveCmd, loansUserCmd, loansGetCmd, loansHistoryCmd)
	loansCmd.PersistentFlags().BoolVar(&eventualReads, "eventual", false, "Read from the replica when one is configured")
}
