package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var (
	userDraft      lending.UserDraft
	userByUsername bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage borrowers",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a borrower",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			user, err := rt.engine.CreateUser(ctx, userDraft)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), user)
		})
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update [user-id]",
	Short: "Change a borrower, flags that are not given keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID("user", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			current, err := rt.engine.FindUserByID(ctx, userID)
			if err != nil {
				return err
			}

			user, err := rt.engine.UpdateUser(ctx, userID, mergeUserDraft(cmd, current, userDraft))
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), user)
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete [user-id]",
	Short: "Delete a borrower that has no active loans",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID("user", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.engine.DeleteUser(ctx, userID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user %s deleted\n", userID)

			return nil
		})
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get [user-id | username]",
	Short: "Show a borrower by id, or by username with --username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			var user lending.User
			var err error

			if userByUsername {
				user, err = rt.engine.FindUserByUsername(ctx, args[0])
			} else {
				userID, parseErr := parseID("user", args[0])
				if parseErr != nil {
					return parseErr
				}

				user, err = rt.engine.FindUserByID(ctx, userID)
			}

			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), user)
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all borrowers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			users, err := rt.engine.ListUsers(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), users)
		})
	},
}

// mergeUserDraft starts from the stored user and applies only the flags the user set.
func mergeUserDraft(cmd *cobra.Command, current lending.User, flags lending.UserDraft) lending.UserDraft {
	draft := lending.UserDraft{
		Username: current.Username,
		FullName: current.FullName,
		Email:    current.Email,
	}

	changed := cmd.Flags().Changed

	if changed("username") {
		draft.Username = flags.Username
	}

	if changed("full-name") {
		draft.FullName = flags.FullName
	}

	if changed("email") {
		draft.Email = flags.Email
	}

	return draft
}

func addUserDraftFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userDraft.Username, "username", "", "Unique username")
	cmd.Flags().StringVar(&userDraft.FullName, "full-name", "", "Full name used in notices")
	cmd.Flags().StringVar(&userDraft.Email, "email", "", "Address for overdue notices")
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userUpdateCmd, userDeleteCmd, userGetCmd, userListCmd)

	addUserDraftFlags(userAddCmd)
	addUserDraftFlags(userUpdateCmd)
	_ = userAddCmd.MarkFlagRequired("username")

	userGetCmd.Flags().BoolVar(&userByUsername, "username", false, "Treat the argument as a username")
}
