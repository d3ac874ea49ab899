package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-smartmedia/pkg/app"
	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var (
	readSector uint32
	readCount  uint32
	readOut    string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read sectors from a card image",
	Long: `Read a run of logical sectors. Without --out the data is hex dumped.
Sectors never written read back as zeros.

Examples:
  # Dump the boot sector
  smartmedia read --image card.img --sector 0

  # Save the first megabyte of a 16MB card
  smartmedia read --image card.img --count 2048 --out head.bin`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		response, err := card.Read(ctx, &card.ReadRequest{
			Session:    session(),
			Range:      app.SectorRange{Sector: readSector, Count: readCount},
			OutputPath: readOut,
		})
		if err != nil {
			return err
		}
		return render(ctx, response)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Uint32Var(&readSector, "sector", 0, "first sector to read")
	readCmd.Flags().Uint32Var(&readCount, "count", 1, "number of sectors")
	readCmd.Flags().StringVar(&readOut, "out", "", "file to save the sectors to")
}
