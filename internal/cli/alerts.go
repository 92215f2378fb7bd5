package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	alertsUser      int64
	alertsThreshold float64
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage drop alert settings",
}

var alertsEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable drop alerts and seed the anchor from the current value",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsUser == 0 {
			return fmt.Errorf("--user is required")
		}
		if alertsThreshold <= 0 {
			return fmt.Errorf("--threshold must be greater than 0")
		}
		return getApp().EnableAlerts(cmd.Context(), alertsUser, alertsThreshold)
	},
}

var alertsDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable drop alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsUser == 0 {
			return fmt.Errorf("--user is required")
		}
		return getApp().DisableAlerts(cmd.Context(), alertsUser)
	},
}

func init() {
	alertsCmd.PersistentFlags().Int64Var(&alertsUser, "user", 0, "User id the alerts belong to")
	alertsEnableCmd.Flags().Float64Var(&alertsThreshold, "threshold", 0, "Drop percentage that triggers an alert")

	alertsCmd.AddCommand(alertsEnableCmd)
	alertsCmd.AddCommand(alertsDisableCmd)
}
