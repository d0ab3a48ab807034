package bridge

import (
	"bytes"
	"encoding/binary"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// PNGDimensions reads the width and height from a PNG IHDR chunk
// without decoding the image. Returns ok=false for anything that is
// not a well-formed PNG header.
func PNGDimensions(data []byte) (width, height int, ok bool) {
	if len(data) < 24 || !IsPNG(data) {
		return 0, 0, false
	}
	if !bytes.Equal(data[12:16], []byte("IHDR")) {
		return 0, 0, false
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	return int(w), int(h), true
}
