package main

import (
	"github.com/spf13/cobra"

	"diet-coach/internal/dietplan"
)

var historyCmd = &cobra.Command{
	Use:   "history <clientId>",
	Short: "List the plans stored for a client, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		plans, err := a.Plans().ListByClient(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if plans == nil {
			plans = []dietplan.StoredPlan{}
		}
		return printJSON(cmd.OutOrStdout(), plans)
	},
}
