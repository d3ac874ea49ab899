package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var (
	writeSector uint32
	writeIn     string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a file to a card image at a sector",
	Long: `Write the contents of a file starting at a logical sector. A partial last
sector is padded with zeros.

Examples:
  smartmedia write --image card.img --sector 32 --in boot.bin
  smartmedia write --image card.img --policy in-place --in fat.bin`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		response, err := card.Write(ctx, &card.WriteRequest{
			Session:   session(),
			Sector:    writeSector,
			InputPath: writeIn,
		})
		if err != nil {
			return err
		}
		return render(ctx, response)
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)

	writeCmd.Flags().Uint32Var(&writeSector, "sector", 0, "first sector to write")
	writeCmd.Flags().StringVar(&writeIn, "in", "", "file to write")
	writeCmd.MarkFlagRequired("in")
}
