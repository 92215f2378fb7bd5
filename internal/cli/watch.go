package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var watchUser int64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched addresses for transaction notifications",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Watch an address for new transactions (0x... or sei1...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().AddWatch(cmd.Context(), watchUser, args[0])
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Stop watching an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().RemoveWatch(cmd.Context(), watchUser, args[0])
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().ListWatches(cmd.Context(), watchUser)
	},
}

func init() {
	watchCmd.PersistentFlags().Int64Var(&watchUser, "user", 0, "User id owning the watches")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchListCmd)
}
