package v4l2

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/camgrab/camgrab/pkg/v4l2/device"
	"github.com/camgrab/camgrab/pkg/v4l2/fake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newCamera() *fake.Device {
	return &fake.Device{
		Caps: device.Capability{
			Driver:       "uvcvideo",
			Card:         "USB Camera",
			BusInfo:      "usb-0000:00:14.0-1",
			Version:      "6.1.0",
			Capabilities: device.V4L2_CAP_VIDEO_CAPTURE | device.V4L2_CAP_STREAMING,
		},
		Formats: []device.FormatDesc{
			{PixelFormat: device.V4L2_PIX_FMT_MJPEG, Description: "Motion-JPEG", Compressed: true},
			{PixelFormat: device.V4L2_PIX_FMT_YUYV, Description: "YUYV 4:2:2"},
			{PixelFormat: 0x3231564E, Description: "Y/CbCr 4:2:0"}, // NV12
		},
		Sizes: map[device.PixelFormat][]device.Size{
			device.V4L2_PIX_FMT_MJPEG: {{Width: 1280, Height: 720}, {Width: 640, Height: 480}},
			device.V4L2_PIX_FMT_YUYV:  {{Width: 640, Height: 480}},
		},
		Rates:    []uint32{30, 15},
		HighQual: true,
	}
}

func TestDescribe(t *testing.T) {
	report, err := Describe(newCamera(), zerolog.Nop())
	require.Nil(t, err)

	require.Equal(t, "uvcvideo", report.Capability.Driver)
	require.Equal(t, []string{"video capture", "streaming"}, report.Capability.Features())
	require.True(t, report.HighQuality)

	require.Len(t, report.Sources, 3)
	require.Equal(t, "Motion-JPEG", report.Sources[0].Name)
	require.Equal(t, "YUV 4:2:2", report.Sources[1].Name)
	require.Equal(t, "Y/CbCr 4:2:0", report.Sources[2].Name)

	mjpeg := report.Sources[0]
	require.Len(t, mjpeg.Sizes, 2)
	require.Equal(t, "1280x720@30,15", mjpeg.Sizes[0].String())
	require.Empty(t, report.Sources[2].Sizes)

	require.True(t, report.Supports(device.V4L2_PIX_FMT_YUYV, 640, 480))
	require.False(t, report.Supports(device.V4L2_PIX_FMT_YUYV, 1280, 720))
	require.True(t, report.Supports(0x3231564E, 320, 240))
	require.False(t, report.Supports(0x34324742, 640, 480))
}

func TestDescribeNoFormats(t *testing.T) {
	dev := newCamera()
	dev.Formats = nil

	_, err := Describe(dev, zerolog.Nop())
	require.ErrorIs(t, err, ErrNoFormats)
}

func TestDescribeClosed(t *testing.T) {
	dev := newCamera()
	require.Nil(t, dev.Close())

	_, err := Describe(dev, zerolog.Nop())
	require.ErrorIs(t, err, device.ErrClosed)
}

func TestSourceSize(t *testing.T) {
	require.Equal(t, "640x480", SourceSize{Size: device.Size{Width: 640, Height: 480}}.String())
}

func TestListDevices(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"video1", "null", "video0", "videodev"} {
		require.Nil(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	require.Equal(t, []string{
		filepath.Join(dir, "video0"),
		filepath.Join(dir, "video1"),
		filepath.Join(dir, "videodev"),
	}, ListDevices(dir))

	require.Nil(t, ListDevices(filepath.Join(dir, "missing")))
}
