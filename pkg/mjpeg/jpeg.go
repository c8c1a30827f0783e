package mjpeg

const (
	markerSOF = 0xC0 // Start Of Frame (Baseline Sequential)
	markerSOI = 0xD8 // Start Of Image
	markerEOI = 0xD9 // End Of Image
	markerSOS = 0xDA // Start Of Scan
	markerDQT = 0xDB // Define Quantization Table
	markerDHT = 0xC4 // Define Huffman Table
)

// IsJPEG checks only SOI and EOI markers. Some UVC cameras pad the frame
// with zeros after EOI, so trailing zeros are skipped.
func IsJPEG(b []byte) bool {
	if len(b) < 4 || b[0] != 0xFF || b[1] != markerSOI {
		return false
	}

	i := len(b)
	for i > 2 && b[i-1] == 0 {
		i--
	}

	return i >= 4 && b[i-2] == 0xFF && b[i-1] == markerEOI
}

// HasHuffman is false for frames of cameras that skip DHT segment,
// such frames need the default table to be decoded by most viewers
func HasHuffman(b []byte) bool {
	for i := 2; i+4 <= len(b); {
		if b[i] != 0xFF {
			return false
		}

		switch b[i+1] {
		case markerDHT:
			return true
		case markerSOS, markerEOI:
			return false
		}

		i += 2 + (int(b[i+2])<<8 | int(b[i+3]))
	}
	return false
}
