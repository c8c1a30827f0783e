package ioctl

import (
	"bytes"
)

// direction bits of the ioctl request code
const (
	write = 1
	read  = 2
)

// Str returns C-string from fixed size kernel array
func Str(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// [ dir(2) ][ size(14) ][ type(8) ][ nr(8) ]
func io(mode byte, type_ byte, number byte, size uint16) uint {
	return uint(mode)<<30 | uint(size&0x3FFF)<<16 | uint(type_)<<8 | uint(number)
}

func IOR(type_ byte, number byte, size uintptr) uint {
	return io(read, type_, number, uint16(size))
}

func IOW(type_ byte, number byte, size uintptr) uint {
	return io(write, type_, number, uint16(size))
}

func IORW(type_ byte, number byte, size uintptr) uint {
	return io(read|write, type_, number, uint16(size))
}
