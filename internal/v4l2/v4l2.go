package v4l2

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/camgrab/camgrab/pkg/v4l2/device"
	"github.com/rs/zerolog"
)

var ErrNoFormats = errors.New("v4l2: device has no pixel formats")

// Device is the query part of device.Device
type Device interface {
	Capability() (*device.Capability, error)
	ListFormats() ([]device.FormatDesc, error)
	ListSizes(pixFmt device.PixelFormat) ([]device.Size, error)
	ListFrameRates(pixFmt device.PixelFormat, width, height uint32) ([]uint32, error)
	HighQuality() (bool, error)
}

type Source struct {
	Format device.FormatDesc
	Name   string
	Sizes  []SourceSize
}

type SourceSize struct {
	device.Size
	Rates []uint32
}

func (s SourceSize) String() string {
	if len(s.Rates) == 0 {
		return fmt.Sprintf("%dx%d", s.Width, s.Height)
	}
	rates := make([]string, len(s.Rates))
	for i, rate := range s.Rates {
		rates[i] = fmt.Sprint(rate)
	}
	return fmt.Sprintf("%dx%d@%s", s.Width, s.Height, strings.Join(rates, ","))
}

type Report struct {
	Capability  *device.Capability
	Sources     []*Source
	HighQuality bool
}

// Describe queries everything the device supports and logs it. Only an empty
// format list is an error, capture is impossible without formats.
func Describe(dev Device, log zerolog.Logger) (*Report, error) {
	report := &Report{}

	c, err := dev.Capability()
	if err != nil {
		return nil, err
	}
	report.Capability = c

	log.Info().Str("driver", c.Driver).Str("card", c.Card).Str("bus", c.BusInfo).
		Str("version", c.Version).Strs("features", c.Features()).Msg("[v4l2] capability")

	formats, err := dev.ListFormats()
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, ErrNoFormats
	}

	for _, format := range formats {
		source := &Source{Format: format, Name: format.Description}

		for _, known := range device.Formats {
			if known.PixelFormat == format.PixelFormat {
				source.Name = known.Name
				break
			}
		}

		sizes, err := dev.ListSizes(format.PixelFormat)
		if err != nil {
			log.Debug().Err(err).Stringer("format", format.PixelFormat).Msg("[v4l2] frame sizes")
		}

		for _, size := range sizes {
			rates, err := dev.ListFrameRates(format.PixelFormat, size.Width, size.Height)
			if err != nil {
				log.Debug().Err(err).Stringer("format", format.PixelFormat).Msg("[v4l2] frame rates")
			}
			source.Sizes = append(source.Sizes, SourceSize{Size: size, Rates: rates})
		}

		report.Sources = append(report.Sources, source)

		info := make([]string, len(source.Sizes))
		for i, size := range source.Sizes {
			info[i] = size.String()
		}

		log.Info().Stringer("format", format.PixelFormat).Str("name", source.Name).
			Bool("compressed", format.Compressed).Strs("sizes", info).Msg("[v4l2] format")
	}

	if report.HighQuality, err = dev.HighQuality(); err != nil {
		log.Debug().Err(err).Msg("[v4l2] high quality")
	}

	log.Info().Bool("high_quality", report.HighQuality).Msg("[v4l2] imaging mode")

	return report, nil
}

// Supports is false when format list has no such pixel format or size.
// Empty size list means the driver doesn't enumerate sizes.
func (r *Report) Supports(pixFmt device.PixelFormat, width, height uint32) bool {
	for _, source := range r.Sources {
		if source.Format.PixelFormat != pixFmt {
			continue
		}
		if len(source.Sizes) == 0 {
			return true
		}
		for _, size := range source.Sizes {
			if size.Width == width && size.Height == height {
				return true
			}
		}
	}
	return false
}

// ListDevices returns video nodes from dir, like /dev/video0
func ListDevices(dir string) []string {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var paths []string

	for _, file := range files {
		if !strings.HasPrefix(file.Name(), "video") {
			continue
		}
		paths = append(paths, filepath.Join(dir, file.Name()))
	}

	sort.Strings(paths)
	return paths
}
