package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show geometry, capacity and zone usage of a card image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		response, err := card.Info(ctx, &card.InfoRequest{Session: session()})
		if err != nil {
			return err
		}
		return render(ctx, response)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
