package buffer

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Driver is the kernel side of the pool, implemented by device.Device
type Driver interface {
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (offset, length uint32, err error)
	Map(offset, length uint32) ([]byte, error)
	Unmap(b []byte) error
	Queue(index uint32) error
	Dequeue() (index, bytesused uint32, err error)
}

var ErrCount = errors.New("buffer: driver can't allocate requested count")

type Pool struct {
	drv Driver
	log zerolog.Logger

	count uint32 // granted by driver, zero when nothing is allocated
	bufs  []*Buffer
}

func NewPool(drv Driver, log zerolog.Logger) *Pool {
	return &Pool{drv: drv, log: log}
}

// Allocate requests exactly n buffers from the driver. A driver that grants
// another count is an error, the partial allocation is released.
func (p *Pool) Allocate(n uint32) error {
	if p.count != 0 {
		return errors.New("buffer: pool is already allocated")
	}

	got, err := p.drv.RequestBuffers(n)
	if err != nil {
		return fmt.Errorf("buffer: request %d: %w", n, err)
	}

	if got != n {
		if got != 0 {
			_, _ = p.drv.RequestBuffers(0)
		}
		return fmt.Errorf("%w: requested %d, got %d", ErrCount, n, got)
	}

	p.count = n
	return nil
}

// MapAll maps every allocated buffer. On the first failure all buffers mapped
// so far are unmapped and *MapError is returned.
func (p *Pool) MapAll() error {
	if p.count == 0 {
		return ErrNotAllocated
	}
	if p.bufs != nil {
		return errors.New("buffer: pool is already mapped")
	}

	p.bufs = make([]*Buffer, 0, p.count)

	for i := uint32(0); i < p.count; i++ {
		offset, length, err := p.drv.QueryBuffer(i)
		if err == nil {
			var data []byte
			if data, err = p.drv.Map(offset, length); err == nil {
				p.bufs = append(p.bufs, &Buffer{Index: i, Length: length, data: data})
				continue
			}
		}

		if err2 := p.UnmapAll(); err2 != nil {
			p.log.Warn().Err(err2).Msg("[buffer] rollback")
		}
		return &MapError{Index: i, Err: err}
	}

	return nil
}

// SubmitAll hands every free buffer to the driver queue. A buffer that fails
// is logged and stays free, the pool works with the remaining ones.
func (p *Pool) SubmitAll() (queued int) {
	for _, b := range p.bufs {
		if b.state != Free {
			continue
		}
		if err := p.drv.Queue(b.Index); err != nil {
			p.log.Warn().Err(err).Uint32("index", b.Index).Msg("[buffer] queue")
			continue
		}
		b.state = Queued
		queued++
	}
	return
}

// Dequeue takes the next filled buffer from the driver. Call it only after
// readiness wait returns ready. A buffer the pool didn't consider queued is
// still marked dequeued, but an error is returned.
func (p *Pool) Dequeue() (*Buffer, error) {
	index, bytesused, err := p.drv.Dequeue()
	if err != nil {
		return nil, err
	}

	b, err := p.get(index)
	if err != nil {
		return nil, err
	}

	if err = b.transition(Queued, Dequeued); err != nil {
		// driver has handed the buffer over anyway, so it is ours now
		p.log.Warn().Uint32("index", index).Stringer("state", b.state).Msg("[buffer] dequeue of not queued buffer")
		b.state = Dequeued
		b.bytesused = 0
		return nil, err
	}

	if bytesused > b.Length {
		bytesused = b.Length
	}
	b.bytesused = bytesused

	return b, nil
}

// Resubmit returns a dequeued buffer to the driver. On error the buffer stays
// dequeued and will be released with the pool.
func (p *Pool) Resubmit(index uint32) error {
	b, err := p.get(index)
	if err != nil {
		return err
	}

	if b.state != Dequeued {
		return fmt.Errorf("%w: buffer %d is %s, want %s", ErrInvalidTransition, index, b.state, Dequeued)
	}

	if err = p.drv.Queue(index); err != nil {
		return err
	}

	b.bytesused = 0
	return b.transition(Dequeued, Queued)
}

// Reset marks all buffers free, driver drops own queue on stream off
func (p *Pool) Reset() {
	for _, b := range p.bufs {
		b.state = Free
		b.bytesused = 0
	}
}

// UnmapAll unmaps every buffer regardless of its state. It is safe to call
// many times and on a pool that was never mapped.
func (p *Pool) UnmapAll() error {
	var errs []error

	for _, b := range p.bufs {
		if b.data == nil {
			continue
		}
		if err := p.drv.Unmap(b.data); err != nil {
			errs = append(errs, fmt.Errorf("buffer: unmap index=%d: %w", b.Index, err))
		}
		b.data = nil
		b.state = Free
		b.bytesused = 0
	}

	p.bufs = nil

	return errors.Join(errs...)
}

// Release unmaps all buffers and frees the driver allocation
func (p *Pool) Release() error {
	err := p.UnmapAll()

	if p.count != 0 {
		p.count = 0
		if _, err2 := p.drv.RequestBuffers(0); err2 != nil {
			p.log.Debug().Err(err2).Msg("[buffer] free")
		}
	}

	return err
}

func (p *Pool) get(index uint32) (*Buffer, error) {
	if int(index) >= len(p.bufs) {
		return nil, fmt.Errorf("%w: %d (n=%d)", ErrUnknownIndex, index, len(p.bufs))
	}
	return p.bufs[index], nil
}

// Len returns the number of mapped buffers
func (p *Pool) Len() int {
	return len(p.bufs)
}

// Buffer returns nil for unknown index
func (p *Pool) Buffer(index uint32) *Buffer {
	b, _ := p.get(index)
	return b
}

func (p *Pool) Count(state State) (n int) {
	for _, b := range p.bufs {
		if b.state == state {
			n++
		}
	}
	return
}
