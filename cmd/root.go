package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-smartmedia/internal/medium"
	"github.com/deploymenttheory/go-smartmedia/pkg/app"
	"github.com/deploymenttheory/go-smartmedia/pkg/app/card"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string

	// Effective card configuration, loaded before every command
	cardConfig *medium.CardConfig
)

var rootCmd = &cobra.Command{
	Use:   "smartmedia",
	Short: "SmartMedia card image tool with a NAND flash translation layer",
	Long: `smartmedia formats, inspects, reads and writes SmartMedia card images.

Sectors are addressed the way a host sees the card: a flat run of logical
sectors, translated to physical NAND blocks through the card's on-media
logical block addresses.

Commands:
  format    Create a blank card image
  info      Show geometry, capacity and zone usage
  map       Dump the logical to physical translation table
  read      Read sectors to a file or a hex dump
  write     Write a file at a sector
  stats     Verify every mapped block and report counters
  config    Show the effective configuration`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its flags from the standard flag set
		if err := flag.CommandLine.Parse(nil); err != nil {
			return err
		}
		cfg, err := medium.LoadCardConfig()
		if err != nil {
			return err
		}
		cardConfig = cfg
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := app.ErrorCode(err); code != "" {
			fmt.Fprintf(os.Stderr, "Code: %s\n", code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")

	// Card settings override the config file and SMARTMEDIA_* environment
	rootCmd.PersistentFlags().String("image", "", "path to the card image")
	rootCmd.PersistentFlags().String("policy", "", "write policy (allocate, in-place)")
	rootCmd.PersistentFlags().Int("wear-skip", 16, "free blocks to skip before allocating")
	rootCmd.PersistentFlags().Bool("verify-reads", false, "check page ECC on every read")
	rootCmd.PersistentFlags().Bool("lazy-map", false, "build the translation table on first access")

	for key, name := range map[string]string{
		"image_path":   "image",
		"write_policy": "policy",
		"wear_skip":    "wear-skip",
		"verify_reads": "verify-reads",
		"lazy_map":     "lazy-map",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	// glog's flags; -v stays the verbose switch so its level is --v
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		pf.Shorthand = ""
		rootCmd.PersistentFlags().AddFlag(pf)
	})
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}

// newContext creates the application context for a command run
func newContext(cmd *cobra.Command) *app.Context {
	ctx := app.NewContext()
	ctx.OutputFormat = GetOutputFormat()
	ctx.Verbose = GetVerbose()
	ctx.Quiet = GetQuiet()
	ctx.Out = cmd.OutOrStdout()
	ctx.ErrOut = cmd.ErrOrStderr()
	if ctx.Verbose && !ctx.Quiet {
		ctx.SetProgress(func(message string, percent int) {
			fmt.Fprintf(ctx.ErrOut, "\r%-40s %3d%%", message, percent)
			if percent == 100 {
				fmt.Fprintln(ctx.ErrOut)
			}
		})
	}
	return ctx
}

// session returns the card session selected by config, environment and flags
func session() card.Session {
	return card.SessionFromConfig(cardConfig)
}

// render writes a response unless quiet output was requested
func render(ctx *app.Context, response any) error {
	if ctx.Quiet {
		return nil
	}
	return card.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
