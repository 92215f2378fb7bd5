package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"portfolio-drop-alerts/internal/app"
)

var (
	simulateUser      int64
	simulateAnchor    float64
	simulateCurrent   float64
	simulateThreshold float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic drop alert through the delivery pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateUser == 0 {
			return fmt.Errorf("--user is required")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			UserID:       simulateUser,
			AnchorUSD:    simulateAnchor,
			CurrentUSD:   simulateCurrent,
			ThresholdPct: simulateThreshold,
		})
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateUser, "user", 0, "User id to notify")
	simulateCmd.Flags().Float64Var(&simulateAnchor, "anchor", 0, "Anchor portfolio value in USD")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "Current portfolio value in USD")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 10, "Alert threshold percentage")
}
