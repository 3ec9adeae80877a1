package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kamrankamilli/gsdoom/pkg/config"
	"github.com/kamrankamilli/gsdoom/pkg/display"
	"github.com/kamrankamilli/gsdoom/pkg/display/providers"
	"github.com/kamrankamilli/gsdoom/pkg/internal/instrument"
	"github.com/kamrankamilli/gsdoom/pkg/internal/log"
	"github.com/kamrankamilli/gsdoom/pkg/metrics"
	"github.com/kamrankamilli/gsdoom/pkg/quantize"
	"github.com/kamrankamilli/gsdoom/pkg/query"
	"github.com/kamrankamilli/gsdoom/pkg/server"
	"github.com/kamrankamilli/gsdoom/pkg/stream"
)

var serveFlags struct {
	listen    string
	provider  string
	scale     int
	fps       int
	image     string
	source    string
	natsURL   string
	subject   string
	encoding  string
	jsonLogs  bool
	omitEmpty bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve screen and metric query streams",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.listen, "listen", "", "HTTP listen address")
	f.StringVar(&serveFlags.provider, "provider", "", "raster source: gstreamer, screencap, image, remote or none")
	f.IntVar(&serveFlags.scale, "scale", 0, "raster scale factor")
	f.IntVar(&serveFlags.fps, "fps", 0, "capture rate of polling raster sources")
	f.StringVar(&serveFlags.image, "image", "", "image file shown by the image source")
	f.StringVar(&serveFlags.source, "gst-source", "", "gstreamer source element")
	f.StringVar(&serveFlags.natsURL, "nats-url", "", "NATS server to receive metric payloads from")
	f.StringVar(&serveFlags.subject, "nats-subject", "", "NATS subject of metric payloads")
	f.StringVar(&serveFlags.encoding, "encoding", "", "default response encoding: json, msgpack or binary")
	f.BoolVar(&serveFlags.jsonLogs, "json-logs", false, "write logs as JSON")
	f.BoolVar(&serveFlags.omitEmpty, "omit-empty-columns", true, "drop palette columns without any pixel from screens")
}

// serveConfig loads the configuration file and applies the flags that were
// set on the command line.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	str := func(name string, src string, dst *string) {
		if f.Changed(name) {
			*dst = src
		}
	}
	num := func(name string, src int, dst *int) {
		if f.Changed(name) {
			*dst = src
		}
	}
	str("listen", serveFlags.listen, &cfg.Listen)
	str("provider", serveFlags.provider, &cfg.Provider)
	str("image", serveFlags.image, &cfg.Image.Path)
	str("gst-source", serveFlags.source, &cfg.Gstreamer.Source)
	str("nats-url", serveFlags.natsURL, &cfg.Metrics.NATSURL)
	str("nats-subject", serveFlags.subject, &cfg.Metrics.Subject)
	str("encoding", serveFlags.encoding, &cfg.Screen.Encoding)
	str("palette", palettePath, &cfg.Palette)
	num("scale", serveFlags.scale, &cfg.Scale)
	num("fps", serveFlags.fps, &cfg.FPS)
	if f.Changed("omit-empty-columns") {
		cfg.Screen.OmitEmptyColumns = serveFlags.omitEmpty
	}
	if debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	config.Debug = cfg.Debug
	if serveFlags.jsonLogs {
		log.SetJSONOutput(os.Stderr)
	}
	defer log.Sync()

	pal, err := loadPalette(cfg.Palette)
	if err != nil {
		return fmt.Errorf("failed to load palette: %w", err)
	}

	reg := prom.NewRegistry()
	rec := instrument.NewPrometheusRecorder(reg)

	var (
		d      *display.Display
		remote *providers.Remote
	)
	if cfg.Provider != config.ProviderNone {
		d = display.NewDisplay(&display.Opts{
			DisplayProvider: providers.Provider(cfg.Provider),
			ProviderOpts: providers.Options{
				FPS:       cfg.FPS,
				Source:    cfg.Gstreamer.Source,
				ImagePath: cfg.Image.Path,
			},
			Width:    cfg.Width,
			Height:   cfg.Height,
			Scale:    cfg.Scale,
			Recorder: rec,
		})
		defer d.Close()
		remote, _ = d.Provider().(*providers.Remote)
	}

	hub := metrics.NewHub()
	if cfg.Metrics.NATSURL != "" {
		src, err := metrics.DialNATS(cfg.Metrics.NATSURL, cfg.Metrics.Subject)
		if err != nil {
			return err
		}
		defer src.Close()
		if err := src.OnMetrics(func(p *metrics.Payload) {
			rec.IncMetricPayloads()
			hub.Publish(p)
		}); err != nil {
			return err
		}
	}

	ds := query.New(d, quantize.New(pal), hub, query.Options{
		OmitEmpty:      cfg.Screen.OmitEmptyColumns,
		SeriesCapacity: cfg.Series.Capacity,
		Recorder:       rec,
	})
	ss, err := stream.NewServer(&stream.Options{
		Datasource: ds,
		Palette:    pal,
		Encoding:   cfg.Screen.Encoding,
		Recorder:   rec,
	})
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Addr:            cfg.Listen,
		Stream:          ss,
		Remote:          remote,
		Hub:             hub,
		Palette:         pal,
		Registry:        reg,
		Recorder:        rec,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration,
	})

	log.Infof("Serving %dx%d (scale %d) from the %s raster source", cfg.Width, cfg.Height, cfg.Scale, cfg.Provider)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
