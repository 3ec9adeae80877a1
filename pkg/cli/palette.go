package cli

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

var paletteOutput string

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Generate and inspect palettes",
}

var paletteGenCmd = &cobra.Command{
	Use:   "gen <swatch-image>",
	Short: "Extract a 256 color palette from a 16x16 swatch image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", args[0], err)
		}
		pal, err := palette.FromSwatchImage(img)
		if err != nil {
			return err
		}
		if err := os.WriteFile(paletteOutput, pal.PAL(), 0o644); err != nil {
			return err
		}
		log.Infof("Wrote %d colors to %s", pal.Len(), paletteOutput)
		return nil
	},
}

var paletteOverridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Print the per-index series color overrides of the palette",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pal, err := loadPalette(palettePath)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(pal.Overrides())
	},
}

func init() {
	paletteGenCmd.Flags().StringVarP(&paletteOutput, "output", "o", "palette.pal", "output .pal file")
	paletteCmd.AddCommand(paletteGenCmd, paletteOverridesCmd)
}
