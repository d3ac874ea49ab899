package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var (
	mapZone       int
	mapMappedOnly bool
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Dump the logical to physical translation table",
	Long: `Dump the state of every physical block as seen by the translation layer.

Examples:
  # Blocks of zone 1 that hold data
  smartmedia map --image card.img --zone 1 --mapped-only

  # Whole table as JSON
  smartmedia map --image card.img -o json`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		response, err := card.Map(ctx, &card.MapRequest{
			Session:    session(),
			Zone:       mapZone,
			MappedOnly: mapMappedOnly,
		})
		if err != nil {
			return err
		}
		return render(ctx, response)
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().IntVar(&mapZone, "zone", -1, "zone to dump (-1 for all)")
	mapCmd.Flags().BoolVar(&mapMappedOnly, "mapped-only", false, "list only blocks that hold a logical block")
}
