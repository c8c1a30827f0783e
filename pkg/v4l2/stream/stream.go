package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camgrab/camgrab/pkg/v4l2/buffer"
	"github.com/camgrab/camgrab/pkg/v4l2/device"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type State byte

const (
	Idle State = iota
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", s)
}

var (
	ErrStart   = errors.New("stream: start")
	ErrStop    = errors.New("stream: stop")
	ErrWait    = errors.New("stream: wait")
	ErrDequeue = errors.New("stream: dequeue")
	ErrEnqueue = errors.New("stream: enqueue")
	ErrSink    = errors.New("stream: sink")
)

type Device interface {
	StreamOn() error
	StreamOff() error
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
}

type Pool interface {
	Dequeue() (*buffer.Buffer, error)
	Resubmit(index uint32) error
	Reset()
}

// Frame is valid only during Sink.WriteFrame call, Data points to the mapped
// memory of the driver buffer
type Frame struct {
	Ordinal int // 1-based, without gaps
	Index   uint32
	Format  device.PixelFormat
	Data    []byte
}

type Sink interface {
	WriteFrame(frame *Frame) error
}

type SinkFunc func(frame *Frame) error

func (f SinkFunc) WriteFrame(frame *Frame) error {
	return f(frame)
}

// Stats describes one stream on / stream off session
type Stats struct {
	ID        string
	Delivered int
	Spurious  int
	TimedOut  bool
	Started   time.Time
	Elapsed   time.Duration
}

type Controller struct {
	dev    Device
	pool   Pool
	format device.PixelFormat
	log    zerolog.Logger

	state State
	stats Stats
}

func NewController(dev Device, pool Pool, format device.PixelFormat, log zerolog.Logger) *Controller {
	return &Controller{dev: dev, pool: pool, format: format, log: log}
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Stats() Stats {
	return c.stats
}

// Start requires mapped and primed pool. On error controller stays idle and
// all resources are left to the caller.
func (c *Controller) Start() error {
	if c.state != Idle {
		return fmt.Errorf("%w: controller is %s", ErrStart, c.state)
	}

	if err := c.dev.StreamOn(); err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	c.state = Streaming
	c.stats = Stats{ID: uuid.NewString(), Started: time.Now()}
	c.log = c.log.With().Str("session", c.stats.ID).Logger()
	c.log.Debug().Msg("[stream] on")

	return nil
}

// Run delivers frames to sink until target count is reached. Readiness
// timeout ends the loop without error. Dequeue, enqueue or sink failure ends
// the loop with error, frames delivered before it stay valid. Buffer that
// failed in sink is not resubmitted.
func (c *Controller) Run(ctx context.Context, sink Sink, target int, timeout time.Duration) error {
	if c.state != Streaming {
		return fmt.Errorf("stream: run in %s state", c.state)
	}

	for c.stats.Delivered < target {
		if err := ctx.Err(); err != nil {
			return err
		}

		ready, err := c.dev.Wait(ctx, timeout)
		if err != nil {
			switch {
			case errors.Is(err, device.ErrTimeout):
				c.stats.TimedOut = true
				c.log.Warn().Dur("timeout", timeout).Int("delivered", c.stats.Delivered).Msg("[stream] no frame")
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrWait, err)
		}

		if !ready {
			c.stats.Spurious++
			continue
		}

		buf, err := c.pool.Dequeue()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDequeue, err)
		}

		frame := &Frame{
			Ordinal: c.stats.Delivered + 1,
			Index:   buf.Index,
			Format:  c.format,
			Data:    buf.Bytes(),
		}

		if err = sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("%w: frame %d: %w", ErrSink, frame.Ordinal, err)
		}

		c.stats.Delivered++

		c.log.Debug().Int("ordinal", frame.Ordinal).Uint32("index", buf.Index).
			Int("bytes", len(frame.Data)).Msg("[stream] frame")

		if err = c.pool.Resubmit(buf.Index); err != nil {
			return fmt.Errorf("%w: %w", ErrEnqueue, err)
		}
	}

	return nil
}

// Stop turns streaming off. Error is only reported, controller is stopped anyway.
func (c *Controller) Stop() error {
	if c.state != Streaming {
		return nil
	}

	c.state = Stopped
	c.stats.Elapsed = time.Since(c.stats.Started)

	if err := c.dev.StreamOff(); err != nil {
		return fmt.Errorf("%w: %w", ErrStop, err)
	}

	c.pool.Reset()
	c.log.Debug().Msg("[stream] off")

	return nil
}
