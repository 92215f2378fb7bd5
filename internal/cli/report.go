package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"portfolio-drop-alerts/internal/app"
)

var (
	reportUser     int64
	reportLookback int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Value a portfolio and print the analytics summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportUser == 0 {
			return fmt.Errorf("--user is required")
		}

		return getApp().Report(cmd.Context(), app.ReportOptions{
			UserID:   reportUser,
			Lookback: reportLookback,
		})
	},
}

func init() {
	reportCmd.Flags().Int64Var(&reportUser, "user", 0, "User id to report on")
	reportCmd.Flags().IntVar(&reportLookback, "lookback", 0, "Volatility lookback in samples (defaults to config)")
}
