package descriptors

import (
	"strings"

	"github.com/google/uuid"
)

// unmarshalGUID converts the 16 wire bytes of a UVC GUID (little-endian
// encoding per UVC spec 1.5, section 2.9) into a canonical uuid.UUID.
func unmarshalGUID(src []byte) uuid.UUID {
	var g uuid.UUID
	g[0] = src[3]
	g[1] = src[2]
	g[2] = src[1]
	g[3] = src[0]
	g[4] = src[5]
	g[5] = src[4]
	g[6] = src[7]
	g[7] = src[6]
	copy(g[8:], src[8:16])
	return g
}

// marshalGUID is the inverse of unmarshalGUID.
func marshalGUID(dst []byte, g uuid.UUID) {
	dst[0] = g[3]
	dst[1] = g[2]
	dst[2] = g[1]
	dst[3] = g[0]
	dst[4] = g[5]
	dst[5] = g[4]
	dst[6] = g[7]
	dst[7] = g[6]
	copy(dst[8:16], g[8:])
}

// FourCCFromGUID extracts the fourcc tag embedded in the first four wire
// bytes of a format GUID ("YUY2", "NV12", "H264", ...). Trailing spaces are
// trimmed, case is preserved. Returns "" if the bytes are not printable
// ASCII.
func FourCCFromGUID(g uuid.UUID) string {
	code := []byte{g[3], g[2], g[1], g[0]}
	for _, c := range code {
		if c != ' ' && (c < 0x21 || c > 0x7e) {
			return ""
		}
	}
	return strings.TrimRight(string(code), " ")
}
