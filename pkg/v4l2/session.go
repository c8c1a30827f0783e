package v4l2

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camgrab/camgrab/pkg/v4l2/buffer"
	"github.com/camgrab/camgrab/pkg/v4l2/device"
	"github.com/camgrab/camgrab/pkg/v4l2/stream"
	"github.com/rs/zerolog"
)

// BuffersCount is fixed, the pool is never resized
const BuffersCount = 4

type Device interface {
	buffer.Driver
	stream.Device

	SetFormat(width, height uint32, pixFmt device.PixelFormat) (*device.PixFormat, error)
	GetFormat() (*device.PixFormat, error)
	SetFrameRate(fps uint32) error
	FrameInterval() (device.Fract, error)
	Close() error
}

type Request struct {
	Width       uint32
	Height      uint32
	FPS         uint32
	PixelFormat device.PixelFormat
}

// Session owns the device and everything allocated on it. Close releases
// all of it in order: streaming, mapped buffers, driver buffers, device.
type Session struct {
	// Format is the one accepted by the driver, filled by Negotiate
	Format *device.PixFormat
	// Interval is zero when frame rate is unknown
	Interval device.Fract

	dev  Device
	pool *buffer.Pool
	ctrl *stream.Controller
	log  zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewSession(dev Device, log zerolog.Logger) *Session {
	return &Session{dev: dev, log: log}
}

// Negotiate sets format and frame rate. Driver may silently adjust format,
// so the effective one is read back. Unsupported frame rate is not an error.
func (s *Session) Negotiate(ctx context.Context, req Request) (*device.PixFormat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.dev.SetFormat(req.Width, req.Height, req.PixelFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: set %s %dx%d: %w", ErrFormatNegotiation, req.PixelFormat, req.Width, req.Height, err)
	}

	if req.FPS > 0 {
		if err = s.dev.SetFrameRate(req.FPS); err != nil {
			s.log.Warn().Err(err).Uint32("fps", req.FPS).Msg("[v4l2] frame rate")
		}
	}

	if s.Interval, err = s.dev.FrameInterval(); err != nil {
		s.log.Debug().Err(err).Msg("[v4l2] frame interval")
	}

	// confirm what driver really uses
	if f, err = s.dev.GetFormat(); err != nil {
		return nil, fmt.Errorf("%w: get: %w", ErrFormatNegotiation, err)
	}

	if f.PixelFormat != req.PixelFormat || f.Width != req.Width || f.Height != req.Height {
		s.log.Warn().Stringer("requested", req.PixelFormat).Uint32("width", req.Width).Uint32("height", req.Height).
			Stringer("effective", f).Msg("[v4l2] format adjusted by driver")
	}

	s.log.Info().Stringer("format", f).Uint32("bytesperline", f.BytesPerLine).Uint32("sizeimage", f.SizeImage).
		Stringer("interval", s.Interval).Float64("fps", s.Interval.FPS()).Msg("[v4l2] negotiated")

	s.Format = f
	return f, nil
}

// Prepare allocates, maps and queues all buffers
func (s *Session) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.pool != nil {
		return errors.New("v4l2: session is already prepared")
	}

	s.pool = buffer.NewPool(s.dev, s.log)

	if err := s.pool.Allocate(BuffersCount); err != nil {
		return fmt.Errorf("%w: %w", ErrBufferAllocation, err)
	}

	if err := s.pool.MapAll(); err != nil {
		return fmt.Errorf("%w: %w", ErrMapping, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if queued := s.pool.SubmitAll(); queued < BuffersCount {
		s.log.Warn().Int("queued", queued).Int("buffers", BuffersCount).Msg("[v4l2] partially primed")
	}

	return nil
}

// Capture runs one streaming session and delivers up to frames frames to sink.
// Stream off error is logged, the session is still closable.
func (s *Session) Capture(ctx context.Context, sink stream.Sink, frames int, timeout time.Duration) (stream.Stats, error) {
	if err := ctx.Err(); err != nil {
		return stream.Stats{}, err
	}

	if s.pool == nil || s.Format == nil {
		return stream.Stats{}, errors.New("v4l2: session is not prepared")
	}

	s.ctrl = stream.NewController(s.dev, s.pool, s.Format.PixelFormat, s.log)

	if err := s.ctrl.Start(); err != nil {
		return stream.Stats{}, err
	}

	err := s.ctrl.Run(ctx, sink, frames, timeout)

	if err2 := s.ctrl.Stop(); err2 != nil {
		s.log.Warn().Err(err2).Msg("[v4l2] stream off")
	}

	return s.ctrl.Stats(), err
}

// Pool returns nil before Prepare
func (s *Session) Pool() *buffer.Pool {
	return s.pool
}

// Close can be called from any state and any number of times
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.ctrl != nil {
			if err := s.ctrl.Stop(); err != nil {
				s.log.Warn().Err(err).Msg("[v4l2] stream off")
			}
		}

		if s.pool != nil {
			errs = append(errs, s.pool.Release())
		}

		errs = append(errs, s.dev.Close())

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
