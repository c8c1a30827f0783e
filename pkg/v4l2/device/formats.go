package device

import (
	"encoding/binary"
	"errors"
	"fmt"
)

type PixelFormat uint32

const (
	V4L2_PIX_FMT_YUYV  PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	V4L2_PIX_FMT_MJPEG PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

var (
	ErrNotCapture           = errors.New("v4l2: not a video capture device")
	ErrNoStreaming          = errors.New("v4l2: device does not support streaming i/o")
	ErrFrameRateUnsupported = errors.New("v4l2: device does not support setting frame rate")
	ErrTimeout              = errors.New("v4l2: wait timeout")
	ErrClosed               = errors.New("v4l2: device closed")
)

type Format struct {
	PixelFormat PixelFormat
	Name        string
	Ext         string
}

var Formats = []Format{
	{V4L2_PIX_FMT_YUYV, "YUV 4:2:2", "yuv"},
	{V4L2_PIX_FMT_MJPEG, "Motion-JPEG", "jpg"},
}

// FourCC returns printable four character code, like "YUYV"
func (p PixelFormat) FourCC() string {
	return string(binary.LittleEndian.AppendUint32(nil, uint32(p)))
}

func (p PixelFormat) String() string {
	return p.FourCC()
}

// Ext returns output file extension for known formats and "raw" for others
func (p PixelFormat) Ext() string {
	for _, format := range Formats {
		if format.PixelFormat == p {
			return format.Ext
		}
	}
	return "raw"
}

// Compressed is true for formats with variable frame size
func (p PixelFormat) Compressed() bool {
	return p == V4L2_PIX_FMT_MJPEG
}

type Fract struct {
	Numerator   uint32
	Denominator uint32
}

func (f Fract) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// FPS converts frame interval to frames per second
func (f Fract) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

type Size struct {
	Width  uint32
	Height uint32
}

// PixFormat is the format the driver actually accepted
type PixFormat struct {
	PixelFormat  PixelFormat
	Width        uint32
	Height       uint32
	BytesPerLine uint32
	SizeImage    uint32
}

func (f *PixFormat) String() string {
	return fmt.Sprintf("%s %dx%d", f.PixelFormat, f.Width, f.Height)
}

type FormatDesc struct {
	PixelFormat PixelFormat
	Description string
	Compressed  bool
}

type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      string
	Capabilities uint32
}

func (c *Capability) Has(flag uint32) bool {
	return c.Capabilities&flag != 0
}

// Features lists human names of known capability flags
func (c *Capability) Features() []string {
	var items []string
	for _, item := range []struct {
		flag uint32
		name string
	}{
		{V4L2_CAP_VIDEO_CAPTURE, "video capture"},
		{V4L2_CAP_STREAMING, "streaming"},
		{V4L2_CAP_VIDEO_OUTPUT, "video output"},
		{V4L2_CAP_VIDEO_OVERLAY, "video overlay"},
		{V4L2_CAP_READWRITE, "read write"},
	} {
		if c.Has(item.flag) {
			items = append(items, item.name)
		}
	}
	return items
}
