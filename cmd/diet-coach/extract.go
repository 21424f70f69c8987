package main

import (
	"github.com/spf13/cobra"

	"diet-coach/internal/server"
)

var extractCreatedBy string

var extractCmd = &cobra.Command{
	Use:   "extract <clientId> <image>...",
	Short: "Extract a plan from local image files and store it",
	Long: `Extract a weekly plan from local images, in page order, and store it
for the given client. The image files are left untouched.

Examples:
  diet-coach extract client-42 page1.jpg page2.jpg`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stored, err := a.ExtractFiles(cmd.Context(), args[0], extractCreatedBy, args[1:])
		if err != nil {
			return err
		}
		plan, err := stored.Plan()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), server.PlanResponse{
			ID:        stored.ID,
			ClientID:  stored.ClientID,
			CreatedBy: stored.CreatedBy,
			CreatedAt: stored.CreatedAt,
			Meals:     plan,
		})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCreatedBy, "created-by", "cli", "Actor recorded on the stored plan")
}
