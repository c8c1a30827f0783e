package v4l2

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/camgrab/camgrab/pkg/v4l2/buffer"
	"github.com/camgrab/camgrab/pkg/v4l2/device"
	"github.com/camgrab/camgrab/pkg/v4l2/fake"
	"github.com/camgrab/camgrab/pkg/v4l2/stream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var vga = Request{Width: 640, Height: 480, FPS: 30, PixelFormat: device.V4L2_PIX_FMT_YUYV}

func requireReleased(t *testing.T, dev *fake.Device) {
	t.Helper()
	require.Equal(t, 0, dev.Mapped())
	require.True(t, dev.Closed)
	require.Equal(t, 1, dev.CloseCalls)
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{}
	s := NewSession(dev, zerolog.Nop())

	f, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Equal(t, device.V4L2_PIX_FMT_YUYV, f.PixelFormat)
	require.Equal(t, uint32(640), f.Width)
	require.Equal(t, uint32(480), f.Height)
	require.Equal(t, device.Fract{Numerator: 1, Denominator: 30}, s.Interval)

	require.Nil(t, s.Prepare(ctx))
	require.Equal(t, BuffersCount, s.Pool().Count(buffer.Queued))

	var ordinals []int
	sink := stream.SinkFunc(func(frame *stream.Frame) error {
		ordinals = append(ordinals, frame.Ordinal)
		return nil
	})

	stats, err := s.Capture(ctx, sink, 3, time.Second)
	require.Nil(t, err)
	require.Equal(t, 3, stats.Delivered)
	require.Equal(t, []int{1, 2, 3}, ordinals)
	require.False(t, dev.Streaming)

	require.Nil(t, s.Close())
	require.Nil(t, s.Close())
	requireReleased(t, dev)
	require.Equal(t, []uint32{BuffersCount, 0}, dev.Requested)
}

func TestSessionAdjustedFormat(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{
		Format: device.PixFormat{PixelFormat: device.V4L2_PIX_FMT_MJPEG, Width: 1280, Height: 720},
	}
	s := NewSession(dev, zerolog.Nop())

	f, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Equal(t, device.V4L2_PIX_FMT_MJPEG, f.PixelFormat)
	require.Equal(t, uint32(1280), s.Format.Width)

	require.Nil(t, s.Prepare(ctx))

	// frames are tagged with the effective format
	var formats []device.PixelFormat
	_, err = s.Capture(ctx, stream.SinkFunc(func(frame *stream.Frame) error {
		formats = append(formats, frame.Format)
		return nil
	}), 2, time.Second)
	require.Nil(t, err)
	require.Equal(t, []device.PixelFormat{device.V4L2_PIX_FMT_MJPEG, device.V4L2_PIX_FMT_MJPEG}, formats)

	require.Nil(t, s.Close())
}

func TestSessionFixedRate(t *testing.T) {
	dev := &fake.Device{FixedRate: true}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(context.Background(), vga)
	require.Nil(t, err)
	require.Equal(t, device.Fract{Numerator: 1, Denominator: 30}, s.Interval)
	require.Nil(t, s.Close())
}

func TestSessionFormatError(t *testing.T) {
	dev := &fake.Device{ErrSetFormat: syscall.EINVAL}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(context.Background(), vga)
	require.ErrorIs(t, err, ErrFormatNegotiation)
	require.ErrorIs(t, err, syscall.EINVAL)
	require.True(t, Fatal(err))

	require.Nil(t, s.Close())
	requireReleased(t, dev)
	require.Empty(t, dev.Requested)
}

func TestSessionGetFormatError(t *testing.T) {
	dev := &fake.Device{ErrGetFormat: syscall.EIO}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(context.Background(), vga)
	require.ErrorIs(t, err, ErrFormatNegotiation)
	require.Nil(t, s.Close())
}

func TestSessionAllocationError(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{Grant: func(n uint32) uint32 { return n - 1 }}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)

	err = s.Prepare(ctx)
	require.ErrorIs(t, err, ErrBufferAllocation)
	require.True(t, Fatal(err))

	require.Nil(t, s.Close())
	requireReleased(t, dev)
}

func TestSessionMappingError(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{ErrMap: map[uint32]error{2: syscall.ENOMEM}}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)

	err = s.Prepare(ctx)
	require.ErrorIs(t, err, ErrMapping)
	require.True(t, Fatal(err))

	var mapErr *buffer.MapError
	require.ErrorAs(t, err, &mapErr)
	require.Equal(t, uint32(2), mapErr.Index)

	// first two mappings are rolled back before the error is returned
	require.Equal(t, 0, dev.Mapped())
	require.Equal(t, 2, dev.UnmapCalls)

	require.Nil(t, s.Close())
	requireReleased(t, dev)
	require.Equal(t, 2, dev.UnmapCalls)
}

func TestSessionStartError(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{ErrStreamOn: syscall.EIO}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Nil(t, s.Prepare(ctx))

	_, err = s.Capture(ctx, stream.SinkFunc(func(*stream.Frame) error { return nil }), 3, time.Second)
	require.ErrorIs(t, err, ErrStreamStart)
	require.True(t, Fatal(err))
	require.Equal(t, 0, dev.StreamOffs)

	require.Nil(t, s.Close())
	requireReleased(t, dev)
}

func TestSessionStopError(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{ErrStreamOff: syscall.EIO}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Nil(t, s.Prepare(ctx))

	stats, err := s.Capture(ctx, stream.SinkFunc(func(*stream.Frame) error { return nil }), 2, time.Second)
	require.Nil(t, err)
	require.Equal(t, 2, stats.Delivered)

	// kernel still streams, driver buffers can't be freed, but memory is unmapped
	// and the device is closed
	require.Nil(t, s.Close())
	requireReleased(t, dev)
}

func TestSessionLoopErrorIsNotFatal(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Nil(t, s.Prepare(ctx))

	stats, err := s.Capture(ctx, stream.SinkFunc(func(frame *stream.Frame) error {
		if frame.Ordinal == 2 {
			return syscall.ENOSPC
		}
		return nil
	}), 3, time.Second)
	require.ErrorIs(t, err, ErrSink)
	require.False(t, Fatal(err))
	require.Equal(t, 1, stats.Delivered)

	require.Nil(t, s.Close())
	requireReleased(t, dev)
}

func TestSessionInterruptMixedStates(t *testing.T) {
	ctx := context.Background()
	dev := &fake.Device{}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Nil(t, s.Prepare(ctx))
	require.Nil(t, dev.StreamOn())

	pool := s.Pool()
	for i := 0; i < 2; i++ {
		_, err = pool.Dequeue()
		require.Nil(t, err)
	}
	require.Equal(t, 2, pool.Count(buffer.Queued))
	require.Equal(t, 2, pool.Count(buffer.Dequeued))

	require.Nil(t, s.Close())
	require.Nil(t, s.Close())
	requireReleased(t, dev)
	require.Equal(t, BuffersCount, dev.UnmapCalls)
}

func TestSessionInterruptBeforeCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	dev := &fake.Device{}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)

	cancel()

	require.ErrorIs(t, s.Prepare(ctx), context.Canceled)
	require.Nil(t, s.Pool())

	require.Nil(t, s.Close())
	requireReleased(t, dev)
	require.Equal(t, 0, dev.UnmapCalls)
}

func TestSessionInterruptDuringCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := &fake.Device{}
	dev.OnWait = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	s := NewSession(dev, zerolog.Nop())

	_, err := s.Negotiate(ctx, vga)
	require.Nil(t, err)
	require.Nil(t, s.Prepare(ctx))

	stats, err := s.Capture(ctx, stream.SinkFunc(func(*stream.Frame) error { return nil }), 5, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, stats.Delivered)
	require.False(t, dev.Streaming)

	require.Nil(t, s.Close())
	requireReleased(t, dev)
}

func TestSessionCloseOnly(t *testing.T) {
	dev := &fake.Device{}
	s := NewSession(dev, zerolog.Nop())
	require.Nil(t, s.Close())
	require.Nil(t, s.Close())
	requireReleased(t, dev)
}

func TestSessionNotPrepared(t *testing.T) {
	s := NewSession(&fake.Device{}, zerolog.Nop())
	_, err := s.Capture(context.Background(), stream.SinkFunc(func(*stream.Frame) error { return nil }), 1, time.Second)
	require.NotNil(t, err)
	require.False(t, Fatal(err))
}
