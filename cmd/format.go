package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var (
	formatDeviceID     int
	formatWriteProtect bool
	formatBadBlocks    []uint
	formatList         bool
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create a blank card image",
	Long: `Create a blank, fully erased card image for a SmartMedia device id.

Examples:
  # Create a 16MB card
  smartmedia format --image card.img --device-id 0x73

  # Create a 32MB card with two factory bad blocks
  smartmedia format --image card.img --device-id 0x75 --bad-blocks 100,517

  # List the supported device ids
  smartmedia format --list`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		if formatList {
			return render(ctx, card.Devices(ctx))
		}

		deviceID := cardConfig.DeviceID
		if cmd.Flags().Changed("device-id") {
			deviceID = formatDeviceID
		}
		bad := make([]uint32, len(formatBadBlocks))
		for i, b := range formatBadBlocks {
			bad[i] = uint32(b)
		}

		response, err := card.Format(ctx, &card.FormatRequest{
			ImagePath:    session().ImagePath,
			DeviceID:     deviceID,
			WriteProtect: formatWriteProtect,
			BadBlocks:    bad,
		})
		if err != nil {
			return err
		}
		return render(ctx, response)
	},
}

func init() {
	rootCmd.AddCommand(formatCmd)

	formatCmd.Flags().IntVar(&formatDeviceID, "device-id", 0x73, "device id byte of the card to emulate")
	formatCmd.Flags().BoolVar(&formatWriteProtect, "write-protect", false, "set the write protect seal")
	formatCmd.Flags().UintSliceVar(&formatBadBlocks, "bad-blocks", nil, "physical blocks to mark bad")
	formatCmd.Flags().BoolVar(&formatList, "list", false, "list supported device ids instead of formatting")
}
