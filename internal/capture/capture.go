package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/camgrab/camgrab/internal/app"
	diag "github.com/camgrab/camgrab/internal/v4l2"
	"github.com/camgrab/camgrab/pkg/filesink"
	"github.com/camgrab/camgrab/pkg/shell"
	"github.com/camgrab/camgrab/pkg/v4l2"
	"github.com/camgrab/camgrab/pkg/v4l2/device"
	"github.com/camgrab/camgrab/pkg/v4l2/stream"
	"github.com/camgrab/camgrab/pkg/yaml"
	"github.com/rs/zerolog"
)

const Usage = `Usage: camgrab [flags] <width> <height> <rate> <format> <count>
  format: 0 - raw YUYV (.yuv), 1 - MJPEG (.jpg)
  count:  number of frames to save, greater than zero`

var ErrUsage = errors.New("capture: wrong arguments")

type Config struct {
	Device      string        `yaml:"device"`
	Output      string        `yaml:"output"`
	Prefix      string        `yaml:"prefix"`
	Timeout     time.Duration `yaml:"timeout"`
	Diagnostics bool          `yaml:"diagnostics"`
}

func DefaultConfig() Config {
	return Config{
		Device:      "/dev/video0",
		Output:      "output",
		Prefix:      "image",
		Timeout:     10 * time.Second,
		Diagnostics: true,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Device == "":
		return errors.New("capture: empty device")
	case c.Timeout <= 0:
		return fmt.Errorf("capture: timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

type Options struct {
	v4l2.Request
	Frames int
}

// Device is everything capture needs from an opened device
type Device interface {
	v4l2.Device
	diag.Device
}

// ParseArgs parses positional arguments: width height rate format count
func ParseArgs(args []string) (*Options, error) {
	if len(args) != 5 {
		return nil, fmt.Errorf("%w: want 5, got %d", ErrUsage, len(args))
	}

	var values [5]uint32
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUsage, arg)
		}
		values[i] = uint32(v)
	}

	opts := &Options{
		Request: v4l2.Request{Width: values[0], Height: values[1], FPS: values[2]},
		Frames:  int(values[4]),
	}

	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("%w: zero frame size", ErrUsage)
	}

	switch values[3] {
	case 0:
		opts.PixelFormat = device.V4L2_PIX_FMT_YUYV
	case 1:
		opts.PixelFormat = device.V4L2_PIX_FMT_MJPEG
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrUsage, values[3])
	}

	if opts.Frames <= 0 {
		return nil, fmt.Errorf("%w: count must be greater than zero", ErrUsage)
	}

	return opts, nil
}

// Run is the whole program, it returns process exit code
func Run(args []string) int {
	return run(args, os.Stderr, app.LoadConfig, openDevice)
}

type openFunc func(path string) (Device, error)

func run(args []string, stderr io.Writer, load func(v any) error, open openFunc) int {
	opts, err := ParseArgs(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s\n%s\n", err, Usage)
		return 1
	}

	log := app.GetLogger("capture")

	cfg := struct {
		Capture Config `yaml:"capture"`
	}{Capture: DefaultConfig()}

	if err = load(&cfg); err == nil {
		err = cfg.Capture.Validate()
	}
	if err != nil {
		log.Error().Err(err).Msg("[capture] read config")
		return 1
	}

	if b, err := yaml.Encode(cfg, 2); err == nil {
		log.Debug().Msgf("[capture] config\n%s", b)
	}

	intr := shell.NotifyInterrupt(context.Background())
	defer intr.Stop()

	stats, err := capture(intr.Context(), cfg.Capture, opts, open, log)

	if sig := intr.Signal(); sig != nil {
		log.Warn().Str("signal", sig.String()).Int("delivered", stats.Delivered).Msg("[capture] interrupted")
		return intr.ExitCode()
	}

	return exitCode(err, log)
}

// capture opens the device and saves opts.Frames frames to cfg.Output.
// The device is closed and all buffers are released before return.
func capture(ctx context.Context, cfg Config, opts *Options, open openFunc, log zerolog.Logger) (stream.Stats, error) {
	dev, err := open(cfg.Device)
	if err != nil {
		return stream.Stats{}, fmt.Errorf("%w: %s: %w", v4l2.ErrDeviceOpen, cfg.Device, err)
	}

	s := v4l2.NewSession(dev, app.GetLogger("v4l2"))
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("[capture] release")
		}
	}()

	dlog := app.GetLogger("v4l2")
	if !cfg.Diagnostics {
		dlog = dlog.Level(zerolog.WarnLevel)
	}

	report, err := diag.Describe(dev, dlog)
	if err != nil {
		if errors.Is(err, diag.ErrNoFormats) {
			return stream.Stats{}, fmt.Errorf("%w: %w", v4l2.ErrFormatNegotiation, err)
		}
		return stream.Stats{}, fmt.Errorf("%w: query: %w", v4l2.ErrDeviceOpen, err)
	}

	if !report.Supports(opts.PixelFormat, opts.Width, opts.Height) {
		log.Warn().Stringer("format", opts.PixelFormat).Uint32("width", opts.Width).Uint32("height", opts.Height).
			Msg("[capture] format is not listed by device")
	}

	f, err := s.Negotiate(ctx, opts.Request)
	if err != nil {
		return stream.Stats{}, err
	}

	if f.PixelFormat != opts.PixelFormat {
		log.Warn().Stringer("requested", opts.PixelFormat).Stringer("effective", f.PixelFormat).
			Str("ext", f.PixelFormat.Ext()).Msg("[capture] files will use effective format")
	}

	if err = s.Prepare(ctx); err != nil {
		return stream.Stats{}, err
	}

	sink := filesink.New(cfg.Output, cfg.Prefix, log)

	stats, err := s.Capture(ctx, sink, opts.Frames, cfg.Timeout)

	log.Info().Str("session", stats.ID).Int("delivered", stats.Delivered).Int("requested", opts.Frames).
		Int("spurious", stats.Spurious).Bool("timed_out", stats.TimedOut).
		Dur("elapsed", stats.Elapsed).Str("output", cfg.Output).Msg("[capture] done")

	return stats, err
}

// exitCode is 1 for setup failures, frames saved before a loop error or
// a readiness timeout are a valid result
func exitCode(err error, log zerolog.Logger) int {
	switch {
	case err == nil:
		return 0
	case v4l2.Fatal(err):
		log.Error().Err(err).Msg("[capture] setup")
		return 1
	case errors.Is(err, context.Canceled):
		return 0
	}

	log.Warn().Err(err).Msg("[capture] stopped")
	return 0
}
