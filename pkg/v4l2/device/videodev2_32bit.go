//go:build 386 || arm || mips || mipsle

package device

type v4l2_format struct { // size 204
	typ uint32          // 0
	pix v4l2_pix_format // 4
	_   [152]byte
}

type v4l2_buffer struct { // size 68
	index      uint32        // 0
	typ        uint32        // 4
	bytesused  uint32        // 8
	flags      uint32        // 12
	field      uint32        // 16
	timestamp  [2]int32      // 20
	timecode   v4l2_timecode // 28
	sequence   uint32        // 44
	memory     uint32        // 48
	offset     uint32        // 52
	length     uint32        // 56
	reserved2  uint32        // 60
	request_fd int32         // 64
}
