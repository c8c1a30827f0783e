// Package fake is an in memory V4L2 capture device for tests. It keeps the
// kernel side of the buffer queue and records every call that matters for
// resource accounting.
package fake

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/camgrab/camgrab/pkg/v4l2/device"
)

type Wait byte

const (
	Ready Wait = iota
	Spurious
	Timeout
)

type Device struct {
	// Accepted format, zero value means the request is accepted as is
	Format device.PixFormat

	// FixedRate makes SetFrameRate fail with device.ErrFrameRateUnsupported
	FixedRate bool

	// Size of every buffer, 4096 by default
	Size uint32

	// Grant overrides buffer count given by the driver
	Grant func(n uint32) uint32

	// Query results
	Caps     device.Capability
	Formats  []device.FormatDesc
	Sizes    map[device.PixelFormat][]device.Size
	Rates    []uint32
	HighQual bool

	ErrSetFormat error
	ErrGetFormat error
	ErrRequest   error
	ErrStreamOn  error
	ErrStreamOff error
	ErrDequeue   error
	ErrWait      error
	ErrMap       map[uint32]error // by buffer index
	ErrQueue     map[uint32]error // by buffer index, applies once

	// Waits is consumed one item per Wait call, when empty Wait reports
	// Ready if something is queued and Timeout otherwise
	Waits []Wait

	// OnWait is called before every Wait with its 1-based number
	OnWait func(n int)

	Requested  []uint32 // every RequestBuffers count
	MapCalls   int
	UnmapCalls int
	CloseCalls int
	StreamOns  int
	StreamOffs int
	WaitCalls  int
	Streaming  bool
	Closed     bool
	Sequence   uint32 // frames filled by the kernel
	Interval   device.Fract
	Request    device.Size // last SetFormat size

	allocated uint32
	mapped    map[uint32][]byte
	queue     []uint32
	queued    map[uint32]bool
}

func (d *Device) size() uint32 {
	if d.Size == 0 {
		return 4096
	}
	return d.Size
}

func (d *Device) check() error {
	if d.Closed {
		return device.ErrClosed
	}
	return nil
}

func (d *Device) Capability() (*device.Capability, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	c := d.Caps
	return &c, nil
}

func (d *Device) ListFormats() ([]device.FormatDesc, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.Formats, nil
}

func (d *Device) ListSizes(pixFmt device.PixelFormat) ([]device.Size, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.Sizes[pixFmt], nil
}

func (d *Device) ListFrameRates(pixFmt device.PixelFormat, width, height uint32) ([]uint32, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.Rates, nil
}

func (d *Device) HighQuality() (bool, error) {
	if err := d.check(); err != nil {
		return false, err
	}
	return d.HighQual, nil
}

func (d *Device) SetFormat(width, height uint32, pixFmt device.PixelFormat) (*device.PixFormat, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if d.ErrSetFormat != nil {
		return nil, d.ErrSetFormat
	}

	d.Request = device.Size{Width: width, Height: height}

	if d.Format.PixelFormat == 0 {
		d.Format = device.PixFormat{
			PixelFormat:  pixFmt,
			Width:        width,
			Height:       height,
			BytesPerLine: width * 2,
			SizeImage:    width * height * 2,
		}
	}

	f := d.Format
	return &f, nil
}

func (d *Device) GetFormat() (*device.PixFormat, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if d.ErrGetFormat != nil {
		return nil, d.ErrGetFormat
	}
	f := d.Format
	return &f, nil
}

func (d *Device) SetFrameRate(fps uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.FixedRate {
		return device.ErrFrameRateUnsupported
	}
	d.Interval = device.Fract{Numerator: 1, Denominator: fps}
	return nil
}

func (d *Device) FrameInterval() (device.Fract, error) {
	if err := d.check(); err != nil {
		return device.Fract{}, err
	}
	if d.Interval.Denominator == 0 {
		return device.Fract{Numerator: 1, Denominator: 30}, nil
	}
	return d.Interval, nil
}

func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	if err := d.check(); err != nil {
		return 0, err
	}

	d.Requested = append(d.Requested, count)

	if d.ErrRequest != nil && count != 0 {
		return 0, d.ErrRequest
	}

	if count == 0 {
		if d.Streaming {
			return 0, syscall.EBUSY
		}
		if len(d.mapped) != 0 {
			return 0, fmt.Errorf("fake: free with %d mapped buffers: %w", len(d.mapped), syscall.EBUSY)
		}
		d.allocated = 0
		d.queue = nil
		d.queued = nil
		return 0, nil
	}

	if d.Grant != nil {
		count = d.Grant(count)
	}

	d.allocated = count
	d.queued = map[uint32]bool{}
	return count, nil
}

func (d *Device) QueryBuffer(index uint32) (offset, length uint32, err error) {
	if err = d.check(); err != nil {
		return
	}
	if index >= d.allocated {
		return 0, 0, syscall.EINVAL
	}
	return index * d.size(), d.size(), nil
}

func (d *Device) Map(offset, length uint32) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}

	d.MapCalls++

	index := offset / d.size()
	if err := d.ErrMap[index]; err != nil {
		return nil, err
	}

	if d.mapped[index] != nil {
		return nil, fmt.Errorf("fake: buffer %d is already mapped: %w", index, syscall.EINVAL)
	}

	b := make([]byte, length)
	if d.mapped == nil {
		d.mapped = map[uint32][]byte{}
	}
	d.mapped[index] = b
	return b, nil
}

// Unmap fails for memory that is not mapped, so double unmap is visible
func (d *Device) Unmap(b []byte) error {
	d.UnmapCalls++

	if len(b) == 0 {
		return syscall.EINVAL
	}
	for index, m := range d.mapped {
		if &m[0] == &b[0] {
			delete(d.mapped, index)
			return nil
		}
	}
	return fmt.Errorf("fake: unmap of unknown memory: %w", syscall.EINVAL)
}

// Mapped returns the number of live mappings
func (d *Device) Mapped() int {
	return len(d.mapped)
}

func (d *Device) Queue(index uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	if index >= d.allocated || d.queued[index] {
		return syscall.EINVAL
	}
	if err := d.ErrQueue[index]; err != nil {
		delete(d.ErrQueue, index)
		return err
	}

	d.queued[index] = true
	d.queue = append(d.queue, index)
	return nil
}

// Queued returns the number of buffers owned by the kernel
func (d *Device) Queued() int {
	return len(d.queue)
}

func (d *Device) Dequeue() (index, bytesused uint32, err error) {
	if err = d.check(); err != nil {
		return
	}
	if d.ErrDequeue != nil {
		return 0, 0, d.ErrDequeue
	}
	if !d.Streaming || len(d.queue) == 0 {
		return 0, 0, syscall.EAGAIN
	}

	index = d.queue[0]
	d.queue = d.queue[1:]
	delete(d.queued, index)

	d.Sequence++
	bytesused = d.fill(index)
	return
}

// fill writes the frame sequence number into the mapped memory of the buffer
func (d *Device) fill(index uint32) uint32 {
	if b := d.mapped[index]; b != nil {
		if d.Format.PixelFormat == device.V4L2_PIX_FMT_MJPEG {
			// minimal marker frame: SOI, sequence byte, EOI
			n := copy(b, []byte{0xFF, 0xD8, byte(d.Sequence), 0xFF, 0xD9})
			return uint32(n)
		}

		for j := range b {
			b[j] = byte(d.Sequence)
		}
		return uint32(len(b))
	}
	return d.size()
}

func (d *Device) StreamOn() error {
	if err := d.check(); err != nil {
		return err
	}
	d.StreamOns++
	if d.ErrStreamOn != nil {
		return d.ErrStreamOn
	}
	d.Streaming = true
	return nil
}

func (d *Device) StreamOff() error {
	if err := d.check(); err != nil {
		return err
	}
	d.StreamOffs++
	if d.ErrStreamOff != nil {
		return d.ErrStreamOff
	}
	d.Streaming = false
	d.queue = nil
	d.queued = map[uint32]bool{}
	return nil
}

func (d *Device) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	d.WaitCalls++

	if d.OnWait != nil {
		d.OnWait(d.WaitCalls)
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := d.check(); err != nil {
		return false, err
	}
	if d.ErrWait != nil {
		return false, d.ErrWait
	}

	if len(d.Waits) > 0 {
		w := d.Waits[0]
		d.Waits = d.Waits[1:]
		switch w {
		case Spurious:
			return false, nil
		case Timeout:
			return false, device.ErrTimeout
		}
	}

	if !d.Streaming || len(d.queue) == 0 {
		return false, device.ErrTimeout
	}
	return true, nil
}

// Close counts every call, only the first one closes the device
func (d *Device) Close() error {
	d.CloseCalls++
	if d.Closed {
		return nil
	}
	d.Closed = true
	return nil
}

var ErrInjected = errors.New("fake: injected error")
