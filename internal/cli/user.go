package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"counselor-assistant/internal/app"
)

func NewUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Manage counselor accounts",
	}
}

// NewUserAddCmd creates the 'user add' command.
func NewUserAddCmd() *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Create an account",
		Example: `  counselorctl user add alice s3cret
  counselorctl user add bob s3cret --admin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			accounts, err := app.NewAccounts(cfg)
			if err != nil {
				return err
			}
			created, err := accounts.Create(args[0], args[1], admin)
			if err != nil {
				return err
			}
			if !created {
				return fmt.Errorf("username %q already exists", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (admin: %t)\n", args[0], admin)
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	return cmd
}

// NewUserListCmd creates the 'user list' command. Password hashes are never printed.
func NewUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			accounts, err := app.NewAccounts(cfg)
			if err != nil {
				return err
			}
			list, err := accounts.LoadAll()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, list)
			}
			fmt.Fprintf(out, "Accounts (%d):\n", len(list))
			for _, acc := range list {
				role := "counselor"
				if acc.IsAdmin {
					role = "admin"
				}
				fmt.Fprintf(out, "  %-20s %s\n", acc.Username, role)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}
