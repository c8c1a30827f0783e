// Package filesink writes every frame to its own file named by the frame
// ordinal: <dir>/<prefix>_<ordinal>.<ext>
package filesink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/camgrab/camgrab/pkg/mjpeg"
	"github.com/camgrab/camgrab/pkg/v4l2/stream"
	"github.com/rs/zerolog"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

type Sink struct {
	dir    string
	prefix string
	log    zerolog.Logger

	ready bool
}

func New(dir, prefix string, log zerolog.Logger) *Sink {
	if prefix == "" {
		prefix = "image"
	}
	return &Sink{dir: dir, prefix: prefix, log: log}
}

// Path returns file name for the frame, extension comes from its pixel format
func (s *Sink) Path(frame *stream.Frame) string {
	name := fmt.Sprintf("%s_%d.%s", s.prefix, frame.Ordinal, frame.Format.Ext())
	return filepath.Join(s.dir, name)
}

// WriteFrame copies frame data to a new file, existing file is truncated.
// Frame memory is not kept after return.
func (s *Sink) WriteFrame(frame *stream.Frame) error {
	if !s.ready {
		if s.dir != "" {
			if err := os.MkdirAll(s.dir, dirMode); err != nil {
				return err
			}
		}
		s.ready = true
	}

	if frame.Format.Compressed() {
		switch {
		case !mjpeg.IsJPEG(frame.Data):
			s.log.Warn().Int("ordinal", frame.Ordinal).Int("bytes", len(frame.Data)).Msg("[filesink] broken jpeg")
		case !mjpeg.HasHuffman(frame.Data):
			s.log.Trace().Int("ordinal", frame.Ordinal).Msg("[filesink] jpeg without huffman table")
		}
	}

	path := s.Path(frame)

	if err := os.WriteFile(path, frame.Data, fileMode); err != nil {
		return err
	}

	s.log.Debug().Str("path", path).Int("bytes", len(frame.Data)).Msg("[filesink] write")

	return nil
}
