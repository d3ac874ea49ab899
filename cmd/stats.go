package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Read every mapped block with ECC checks and report counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		response, err := card.Stats(ctx, &card.StatsRequest{Session: session()})
		if err != nil {
			return err
		}
		return render(ctx, response)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
