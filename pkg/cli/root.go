// Package cli holds the gsdoom command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kamrankamilli/gsdoom/pkg/config"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath  string
	debug       bool
	palettePath string
)

// RootCmd is the gsdoom command.
var RootCmd = &cobra.Command{
	Use:           "gsdoom",
	Short:         "Stream a rendered raster as palette-indexed time series",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			config.Debug = true
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a gsdoom.yaml configuration file")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	RootCmd.PersistentFlags().StringVar(&palettePath, "palette", "", "palette file (.pal, .json or swatch image); empty uses the built-in palette")

	RootCmd.AddCommand(serveCmd, transcodeCmd, paletteCmd, versionCmd)
}

// loadPalette returns the palette at path, or the built-in one.
func loadPalette(path string) (*palette.Palette, error) {
	if path == "" {
		return palette.Default(), nil
	}
	return palette.Load(path)
}
