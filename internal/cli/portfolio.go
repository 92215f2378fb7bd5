package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	portfolioUser  int64
	portfolioLabel string
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Manage tracked wallet addresses",
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Track a wallet address (0x... or sei1...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if portfolioUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().AddAddress(cmd.Context(), portfolioUser, args[0], portfolioLabel)
	},
}

var portfolioRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Stop tracking a wallet address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if portfolioUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().RemoveAddress(cmd.Context(), portfolioUser, args[0])
	},
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked wallet addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if portfolioUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().ListPortfolio(cmd.Context(), portfolioUser)
	},
}

func init() {
	portfolioCmd.PersistentFlags().Int64Var(&portfolioUser, "user", 0, "User id owning the portfolio")
	portfolioAddCmd.Flags().StringVar(&portfolioLabel, "label", "", "Optional label for the address")

	portfolioCmd.AddCommand(portfolioAddCmd)
	portfolioCmd.AddCommand(portfolioRemoveCmd)
	portfolioCmd.AddCommand(portfolioListCmd)
}
