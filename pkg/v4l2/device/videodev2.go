package device

import (
	"unsafe"

	"github.com/camgrab/camgrab/pkg/ioctl"
)

// https://github.com/torvalds/linux/blob/master/include/uapi/linux/videodev2.h

var (
	VIDIOC_QUERYCAP = ioctl.IOR('V', 0, unsafe.Sizeof(v4l2_capability{}))
	VIDIOC_ENUM_FMT = ioctl.IORW('V', 2, unsafe.Sizeof(v4l2_fmtdesc{}))
	VIDIOC_G_FMT    = ioctl.IORW('V', 4, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_S_FMT    = ioctl.IORW('V', 5, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_REQBUFS  = ioctl.IORW('V', 8, unsafe.Sizeof(v4l2_requestbuffers{}))
	VIDIOC_QUERYBUF = ioctl.IORW('V', 9, unsafe.Sizeof(v4l2_buffer{}))

	VIDIOC_QBUF      = ioctl.IORW('V', 15, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_DQBUF     = ioctl.IORW('V', 17, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_STREAMON  = ioctl.IOW('V', 18, unsafe.Sizeof(int32(0)))
	VIDIOC_STREAMOFF = ioctl.IOW('V', 19, unsafe.Sizeof(int32(0)))
	VIDIOC_G_PARM    = ioctl.IORW('V', 21, unsafe.Sizeof(v4l2_streamparm{}))
	VIDIOC_S_PARM    = ioctl.IORW('V', 22, unsafe.Sizeof(v4l2_streamparm{}))

	VIDIOC_ENUM_FRAMESIZES     = ioctl.IORW('V', 74, unsafe.Sizeof(v4l2_frmsizeenum{}))
	VIDIOC_ENUM_FRAMEINTERVALS = ioctl.IORW('V', 75, unsafe.Sizeof(v4l2_frmivalenum{}))
)

const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_FIELD_ANY              = 0
	V4L2_FRMIVAL_TYPE_DISCRETE  = 1
	V4L2_FRMSIZE_TYPE_DISCRETE  = 1
	V4L2_MEMORY_MMAP            = 1

	V4L2_CAP_VIDEO_CAPTURE = 0x00000001
	V4L2_CAP_VIDEO_OUTPUT  = 0x00000002
	V4L2_CAP_VIDEO_OVERLAY = 0x00000004
	V4L2_CAP_READWRITE     = 0x01000000
	V4L2_CAP_STREAMING     = 0x04000000
	V4L2_CAP_DEVICE_CAPS   = 0x80000000

	V4L2_CAP_TIMEPERFRAME = 0x1000
	V4L2_MODE_HIGHQUALITY = 0x0001
)

type v4l2_capability struct { // size 104
	driver       [16]byte
	card         [32]byte
	bus_info     [32]byte
	version      uint32
	capabilities uint32
	device_caps  uint32
	reserved     [3]uint32
}

type v4l2_pix_format struct { // size 48
	width        uint32 // 0
	height       uint32 // 4
	pixelformat  uint32 // 8
	field        uint32 // 12
	bytesperline uint32 // 16
	sizeimage    uint32 // 20
	colorspace   uint32 // 24
	priv         uint32 // 28
	flags        uint32 // 32
	ycbcr_enc    uint32 // 36
	quantization uint32 // 40
	xfer_func    uint32 // 44
}

type v4l2_streamparm struct { // size 204
	typ     uint32
	capture v4l2_captureparm
	_       [160]byte
}

type v4l2_captureparm struct { // size 40
	capability   uint32     // 0
	capturemode  uint32     // 4
	timeperframe v4l2_fract // 8
	extendedmode uint32     // 16
	readbuffers  uint32     // 20
	reserved     [4]uint32  // 24
}

type v4l2_fract struct {
	numerator   uint32
	denominator uint32
}

type v4l2_requestbuffers struct { // size 20
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2_timecode struct { // size 16
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2_fmtdesc struct { // size 64
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbus_code   uint32
	reserved    [3]uint32
}

type v4l2_frmsizeenum struct { // size 44
	index        uint32                // 0
	pixel_format uint32                // 4
	typ          uint32                // 8
	discrete     v4l2_frmsize_discrete // 12
	_            [24]byte              // stepwise tail + reserved
}

type v4l2_frmsize_discrete struct {
	width  uint32
	height uint32
}

type v4l2_frmivalenum struct { // size 52
	index        uint32     // 0
	pixel_format uint32     // 4
	width        uint32     // 8
	height       uint32     // 12
	typ          uint32     // 16
	discrete     v4l2_fract // 20
	_            [24]byte   // stepwise tail + reserved
}
