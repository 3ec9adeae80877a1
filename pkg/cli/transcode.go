package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamrankamilli/gsdoom/pkg/config"
	"github.com/kamrankamilli/gsdoom/pkg/display/providers"
	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/frame/encodings"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
	"github.com/kamrankamilli/gsdoom/pkg/transcode"
)

var transcodeFlags struct {
	encoding  string
	preview   string
	output    string
	refID     string
	width     int
	height    int
	scale     int
	half      bool
	omitEmpty bool
	window    time.Duration
}

var transcodeCmd = &cobra.Command{
	Use:   "transcode <image>",
	Short: "Transcode one image file into an encoded screen frame",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscode,
}

func init() {
	f := transcodeCmd.Flags()
	f.StringVarP(&transcodeFlags.encoding, "encoding", "e", "json", "frame encoding: json, msgpack or binary")
	f.StringVar(&transcodeFlags.preview, "preview", "", "write a reconstructed png or jpeg instead of the frame")
	f.StringVarP(&transcodeFlags.output, "output", "o", "", "output file; empty writes to stdout")
	f.StringVar(&transcodeFlags.refID, "ref-id", "A", "query identifier of the frame")
	f.IntVar(&transcodeFlags.width, "width", config.DefaultWidth, "reference width")
	f.IntVar(&transcodeFlags.height, "height", config.DefaultHeight, "reference height")
	f.IntVar(&transcodeFlags.scale, "scale", 1, "raster scale factor")
	f.BoolVar(&transcodeFlags.half, "half", false, "sample at half resolution")
	f.BoolVar(&transcodeFlags.omitEmpty, "omit-empty-columns", false, "drop palette columns without any pixel")
	f.DurationVar(&transcodeFlags.window, "window", time.Minute, "time window ending now that the frame spans")
}

func runTranscode(cmd *cobra.Command, args []string) error {
	fl := transcodeFlags
	if err := config.ValidateDimensions(fl.width, fl.height); err != nil {
		return err
	}
	if fl.scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %d", fl.scale)
	}
	if fl.window <= 0 {
		return fmt.Errorf("window must be positive, got %s", fl.window)
	}

	pal, err := loadPalette(palettePath)
	if err != nil {
		return fmt.Errorf("failed to load palette: %w", err)
	}
	name := fl.encoding
	if fl.preview != "" {
		name = fl.preview
	}
	enc, err := encodings.Get(name, pal)
	if err != nil {
		return err
	}

	img, err := providers.LoadImage(args[0], fl.width*fl.scale, fl.height*fl.scale)
	if err != nil {
		return err
	}

	dims := transcode.Dimensions{Width: fl.width, Height: fl.height}
	tr := transcode.New(quantize.New(pal), dims)
	// Decoded images are top-down.
	cols := tr.Transcode(img.Pix, transcode.Options{VerticalFlip: true, Scale: fl.scale, HalfResolution: fl.half})
	step := fl.window / time.Duration(fl.width)
	screen := transcode.Build(cols, time.Now().Add(-fl.window), step, fl.half, transcode.BuildOptions{
		RefID:     fl.refID,
		OmitEmpty: fl.omitEmpty,
	})

	var out io.Writer = cmd.OutOrStdout()
	if fl.output != "" {
		f, err := os.Create(fl.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return enc.Encode(out, &frame.Response{Key: fl.refID, State: frame.StateDone, Screen: screen})
}
