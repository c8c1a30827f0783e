//go:build linux

package device

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/camgrab/camgrab/pkg/ioctl"
	"golang.org/x/sys/unix"
)

type Device struct {
	fd int
}

// Open opens path and checks that it is a streaming video capture device
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	d := &Device{fd: fd}

	c, err := d.Capability()
	if err != nil {
		_ = d.Close()
		// ENOTTY for regular files and non V4L2 char devices
		return nil, fmt.Errorf("%w: %s: %w", ErrNotCapture, path, err)
	}

	if !c.Has(V4L2_CAP_VIDEO_CAPTURE) {
		_ = d.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotCapture, path)
	}

	if !c.Has(V4L2_CAP_STREAMING) {
		_ = d.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoStreaming, path)
	}

	return d, nil
}

// Close is safe to call many times
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = -1
	return unix.Close(fd)
}

func (d *Device) ioctl(req uint, arg unsafe.Pointer) error {
	if d.fd < 0 {
		return ErrClosed
	}
	return ioctl.Ioctl(d.fd, req, arg)
}

func (d *Device) Capability() (*Capability, error) {
	c := v4l2_capability{}
	if err := d.ioctl(VIDIOC_QUERYCAP, unsafe.Pointer(&c)); err != nil {
		return nil, err
	}

	caps := c.capabilities
	if caps&V4L2_CAP_DEVICE_CAPS != 0 {
		caps = c.device_caps
	}

	return &Capability{
		Driver:       ioctl.Str(c.driver[:]),
		Card:         ioctl.Str(c.card[:]),
		BusInfo:      ioctl.Str(c.bus_info[:]),
		Version:      fmt.Sprintf("%d.%d.%d", byte(c.version>>16), byte(c.version>>8), byte(c.version)),
		Capabilities: caps,
	}, nil
}

func (d *Device) ListFormats() ([]FormatDesc, error) {
	var items []FormatDesc

	for i := uint32(0); ; i++ {
		fd := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}
		if err := d.ioctl(VIDIOC_ENUM_FMT, unsafe.Pointer(&fd)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		items = append(items, FormatDesc{
			PixelFormat: PixelFormat(fd.pixelformat),
			Description: ioctl.Str(fd.description[:]),
			Compressed:  fd.flags&0x1 != 0, // V4L2_FMT_FLAG_COMPRESSED
		})
	}

	return items, nil
}

func (d *Device) ListSizes(pixFmt PixelFormat) ([]Size, error) {
	var items []Size

	for i := uint32(0); ; i++ {
		fs := v4l2_frmsizeenum{
			index:        i,
			pixel_format: uint32(pixFmt),
		}
		if err := d.ioctl(VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&fs)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		if fs.typ != V4L2_FRMSIZE_TYPE_DISCRETE {
			continue
		}

		items = append(items, Size{Width: fs.discrete.width, Height: fs.discrete.height})
	}

	return items, nil
}

func (d *Device) ListFrameRates(pixFmt PixelFormat, width, height uint32) ([]uint32, error) {
	var items []uint32

	for i := uint32(0); ; i++ {
		fi := v4l2_frmivalenum{
			index:        i,
			pixel_format: uint32(pixFmt),
			width:        width,
			height:       height,
		}
		if err := d.ioctl(VIDIOC_ENUM_FRAMEINTERVALS, unsafe.Pointer(&fi)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		if fi.typ != V4L2_FRMIVAL_TYPE_DISCRETE || fi.discrete.numerator != 1 {
			continue
		}

		items = append(items, fi.discrete.denominator)
	}

	return items, nil
}

// SetFormat returns the format adjusted by the driver, it may differ from requested
func (d *Device) SetFormat(width, height uint32, pixFmt PixelFormat) (*PixFormat, error) {
	f := v4l2_format{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		pix: v4l2_pix_format{
			width:       width,
			height:      height,
			pixelformat: uint32(pixFmt),
			field:       V4L2_FIELD_ANY,
		},
	}
	if err := d.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&f)); err != nil {
		return nil, err
	}
	return pixFormat(&f.pix), nil
}

func (d *Device) GetFormat() (*PixFormat, error) {
	f := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := d.ioctl(VIDIOC_G_FMT, unsafe.Pointer(&f)); err != nil {
		return nil, err
	}
	return pixFormat(&f.pix), nil
}

func pixFormat(pix *v4l2_pix_format) *PixFormat {
	return &PixFormat{
		PixelFormat:  PixelFormat(pix.pixelformat),
		Width:        pix.width,
		Height:       pix.height,
		BytesPerLine: pix.bytesperline,
		SizeImage:    pix.sizeimage,
	}
}

func (d *Device) getParam() (*v4l2_streamparm, error) {
	p := &v4l2_streamparm{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := d.ioctl(VIDIOC_G_PARM, unsafe.Pointer(p)); err != nil {
		return nil, err
	}
	return p, nil
}

// SetFrameRate returns ErrFrameRateUnsupported if driver has no timeperframe capability
func (d *Device) SetFrameRate(fps uint32) error {
	if fps == 0 {
		return errors.New("v4l2: zero frame rate")
	}

	p, err := d.getParam()
	if err != nil {
		return err
	}

	if p.capture.capability&V4L2_CAP_TIMEPERFRAME == 0 {
		return ErrFrameRateUnsupported
	}

	p.capture.timeperframe = v4l2_fract{numerator: 1, denominator: fps}
	return d.ioctl(VIDIOC_S_PARM, unsafe.Pointer(p))
}

func (d *Device) FrameInterval() (Fract, error) {
	p, err := d.getParam()
	if err != nil {
		return Fract{}, err
	}
	return Fract{
		Numerator:   p.capture.timeperframe.numerator,
		Denominator: p.capture.timeperframe.denominator,
	}, nil
}

func (d *Device) HighQuality() (bool, error) {
	p, err := d.getParam()
	if err != nil {
		return false, err
	}
	return p.capture.capability&V4L2_MODE_HIGHQUALITY != 0, nil
}

// RequestBuffers returns the count granted by the driver, zero count frees buffers
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	rb := v4l2_requestbuffers{
		count:  count,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := d.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(&rb)); err != nil {
		return 0, err
	}
	return rb.count, nil
}

func (d *Device) QueryBuffer(index uint32) (offset, length uint32, err error) {
	qb := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err = d.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
		return
	}
	return qb.offset, qb.length, nil
}

// Map makes kernel buffer readable without copy. Mapping is read only,
// nobody should write to the captured frame.
func (d *Device) Map(offset, length uint32) ([]byte, error) {
	if d.fd < 0 {
		return nil, ErrClosed
	}
	return unix.Mmap(d.fd, int64(offset), int(length), unix.PROT_READ, unix.MAP_SHARED)
}

func (d *Device) Unmap(b []byte) error {
	return unix.Munmap(b)
}

func (d *Device) Queue(index uint32) error {
	qb := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	return d.ioctl(VIDIOC_QBUF, unsafe.Pointer(&qb))
}

func (d *Device) Dequeue() (index, bytesused uint32, err error) {
	qb := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err = d.ioctl(VIDIOC_DQBUF, unsafe.Pointer(&qb)); err != nil {
		return
	}
	return qb.index, qb.bytesused, nil
}

func (d *Device) StreamOn() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return d.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&typ))
}

func (d *Device) StreamOff() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return d.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&typ))
}

// poll wakes up this often to check ctx
const pollSlice = 100 * time.Millisecond

// Wait blocks until a filled buffer is ready to dequeue. Returns false without
// error on a wake up with nothing to read, ErrTimeout after timeout and
// ctx.Err() when ctx is done.
func (d *Device) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	if d.fd < 0 {
		return false, ErrClosed
	}

	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		left := time.Until(deadline)
		if left <= 0 {
			return false, ErrTimeout
		}
		if left > pollSlice {
			left = pollSlice
		}

		fds[0].Revents = 0

		n, err := unix.Poll(fds, int((left+time.Millisecond-1)/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				return false, nil
			}
			return false, err
		}
		if n == 0 {
			continue
		}

		revents := fds[0].Revents
		if revents&unix.POLLIN != 0 {
			return true, nil
		}
		// driver returns POLLERR when nothing is queued or streaming is off
		if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("v4l2: poll revents=%#x", revents)
		}
		return false, nil
	}
}
