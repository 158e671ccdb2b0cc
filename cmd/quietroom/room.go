package main

import (
	"github.com/spf13/cobra"

	"github.com/PabloGalante/quiet-room/internal/adapters/tui"
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Open the room in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		return tui.Run(ctx, a.svc)
	},
}

func init() {
	rootCmd.AddCommand(roomCmd)
}
