package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"portfolio-drop-alerts/internal/app"
)

var (
	showUser   int64
	showLimit  int
	showAlerts bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent value samples or alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showUser == 0 {
			return fmt.Errorf("--user is required")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			UserID: showUser,
			Limit:  showLimit,
			Alerts: showAlerts,
		})
	},
}

func init() {
	showCmd.Flags().Int64Var(&showUser, "user", 0, "User id to display")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Show alert history instead of value samples")
}
