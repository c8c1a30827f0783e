//go:build amd64 || arm64 || riscv64 || ppc64le || loong64 || mips64 || mips64le || s390x

package device

type v4l2_format struct { // size 208
	typ uint32          // 0
	_   [4]byte         // union is pointer aligned
	pix v4l2_pix_format // 8
	_   [152]byte
}

type v4l2_buffer struct { // size 88
	index      uint32        // 0
	typ        uint32        // 4
	bytesused  uint32        // 8
	flags      uint32        // 12
	field      uint32        // 16
	_          [4]byte       // 20
	timestamp  [2]int64      // 24
	timecode   v4l2_timecode // 40
	sequence   uint32        // 56
	memory     uint32        // 60
	offset     uint32        // 64
	_          [4]byte       // 68
	length     uint32        // 72
	reserved2  uint32        // 76
	request_fd int32         // 80
	_          [4]byte       // 84
}
