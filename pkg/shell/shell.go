package shell

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Interrupt cancels its context on the first received signal and remembers it
type Interrupt struct {
	ctx    context.Context
	cancel context.CancelFunc
	sigs   chan os.Signal

	mu  sync.Mutex
	sig os.Signal
}

// NotifyInterrupt listens for SIGINT and SIGTERM, or for sigs if any are given
func NotifyInterrupt(parent context.Context, sigs ...os.Signal) *Interrupt {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(parent)
	i := &Interrupt{ctx: ctx, cancel: cancel, sigs: make(chan os.Signal, 1)}
	signal.Notify(i.sigs, sigs...)

	go func() {
		select {
		case sig := <-i.sigs:
			// next signal gets default handling and kills a stuck teardown
			signal.Stop(i.sigs)
			i.mu.Lock()
			i.sig = sig
			i.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return i
}

func (i *Interrupt) Context() context.Context {
	return i.ctx
}

// Signal returns nil until a signal is received
func (i *Interrupt) Signal() os.Signal {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sig
}

// ExitCode is the signal number, or 0 without a signal
func (i *Interrupt) ExitCode() int {
	if sig, ok := i.Signal().(syscall.Signal); ok {
		return int(sig)
	}
	return 0
}

// Stop restores default signal behaviour, the same happens on the first
// received signal
func (i *Interrupt) Stop() {
	signal.Stop(i.sigs)
	i.cancel()
}
