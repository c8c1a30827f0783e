package v4l2

import (
	"errors"

	"github.com/camgrab/camgrab/pkg/v4l2/stream"
)

var (
	ErrDeviceOpen        = errors.New("v4l2: open device")
	ErrFormatNegotiation = errors.New("v4l2: format negotiation")
	ErrBufferAllocation  = errors.New("v4l2: buffer allocation")
	ErrMapping           = errors.New("v4l2: buffer mapping")

	ErrStreamStart = stream.ErrStart
	ErrStreamStop  = stream.ErrStop
	ErrDequeue     = stream.ErrDequeue
	ErrEnqueue     = stream.ErrEnqueue
	ErrSink        = stream.ErrSink
)

// Fatal is true for setup errors, after them nothing was captured.
// Errors from the acquisition loop are not fatal, frames written before
// them are a valid result.
func Fatal(err error) bool {
	for _, target := range []error{
		ErrDeviceOpen, ErrFormatNegotiation, ErrBufferAllocation, ErrMapping, ErrStreamStart,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
