package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the settings in effect after merging smartmedia-config.yaml,
SMARTMEDIA_* environment variables and command line flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)
		if file := viper.ConfigFileUsed(); file != "" {
			ctx.Log(fmt.Sprintf("Config file: %s", file))
		}
		if ctx.OutputFormat == "table" {
			ctx.OutputFormat = "yaml"
		}
		return render(ctx, configView{
			ImagePath:   cardConfig.ImagePath,
			DeviceID:    fmt.Sprintf("0x%02x", cardConfig.DeviceID),
			WritePolicy: cardConfig.WritePolicy,
			WearSkip:    cardConfig.WearSkip,
			VerifyReads: cardConfig.VerifyReads,
			LazyMap:     cardConfig.LazyMap,
			ConfigFile:  viper.ConfigFileUsed(),
		})
	},
}

type configView struct {
	ImagePath   string `json:"image_path" yaml:"image_path"`
	DeviceID    string `json:"device_id" yaml:"device_id"`
	WritePolicy string `json:"write_policy" yaml:"write_policy"`
	WearSkip    int    `json:"wear_skip" yaml:"wear_skip"`
	VerifyReads bool   `json:"verify_reads" yaml:"verify_reads"`
	LazyMap     bool   `json:"lazy_map" yaml:"lazy_map"`
	ConfigFile  string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

func init() {
	rootCmd.AddCommand(configCmd)
}
