// Package nal normalises H.264/H.265 elementary streams coming out of UVC
// frame-based payloads. UVC 1.5 permits the camera to omit SPS/PPS from
// every frame; decoders need them before the first IDR, so the normaliser
// caches parameter sets and prepends them where the camera left them out.
package nal

import (
	"bytes"
	"encoding/binary"
)

// StartCode is the four-byte Annex B NAL unit delimiter.
var StartCode = []byte{0x00, 0x00, 0x00, 0x01}

var shortStartCode = []byte{0x00, 0x00, 0x01}

// layoutDetectWindow bounds the Annex B start-code scan; real streams carry
// a start code within the first few bytes.
const layoutDetectWindow = 64

// DetectLengthPrefix inspects a payload and returns the AVC length-prefix
// size (4..1), or zero if the payload is Annex B. The heuristic is stable
// per stream and is re-evaluated once per stream, not per frame.
func DetectLengthPrefix(payload []byte) int {
	window := payload
	if len(window) > layoutDetectWindow {
		window = window[:layoutDetectWindow]
	}
	if bytes.Contains(window, shortStartCode) {
		return 0
	}
	for _, size := range []int{4, 3, 2, 1} {
		if len(payload) <= size {
			continue
		}
		nalSize := lengthAt(payload, 0, size)
		if nalSize > 0 && nalSize <= len(payload)-size {
			return size
		}
	}
	return 0
}

func lengthAt(buf []byte, offset, size int) int {
	var n uint64
	for i := 0; i < size; i++ {
		n = n<<8 | uint64(buf[offset+i])
	}
	if n > uint64(len(buf)) {
		return -1
	}
	return int(n)
}

// Split yields the raw NAL units of a payload. lengthPrefix == 0 selects
// Annex B parsing; otherwise each NAL is preceded by a big-endian length of
// that many bytes.
func Split(payload []byte, lengthPrefix int) [][]byte {
	if lengthPrefix > 0 {
		return splitAVC(payload, lengthPrefix)
	}
	return splitAnnexB(payload)
}

func splitAVC(payload []byte, lengthPrefix int) [][]byte {
	var nalus [][]byte
	for offset := 0; offset+lengthPrefix <= len(payload); {
		size := lengthAt(payload, offset, lengthPrefix)
		offset += lengthPrefix
		if size <= 0 || offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

func splitAnnexB(payload []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0
	for i+2 < len(payload) {
		if payload[i] != 0 || payload[i+1] != 0 {
			i++
			continue
		}
		var codeLen int
		if payload[i+2] == 1 {
			codeLen = 3
		} else if i+3 < len(payload) && payload[i+2] == 0 && payload[i+3] == 1 {
			codeLen = 4
		} else {
			i++
			continue
		}
		if start >= 0 {
			nalus = append(nalus, trimTrailingZeros(payload[start:i]))
		}
		i += codeLen
		start = i
	}
	if start >= 0 && start < len(payload) {
		nalus = append(nalus, payload[start:])
	}
	return nalus
}

// trimTrailingZeros removes the zero bytes that belong to the next start
// code when a three-byte code follows a NAL directly.
func trimTrailingZeros(nal []byte) []byte {
	for len(nal) > 0 && nal[len(nal)-1] == 0 {
		nal = nal[:len(nal)-1]
	}
	return nal
}

// JoinAnnexB concatenates NAL units with four-byte start codes.
func JoinAnnexB(nalus [][]byte) []byte {
	size := 0
	for _, nal := range nalus {
		size += len(StartCode) + len(nal)
	}
	out := make([]byte, 0, size)
	for _, nal := range nalus {
		out = append(out, StartCode...)
		out = append(out, nal...)
	}
	return out
}

// ConvertToAnnexB rewrites a length-prefixed payload, replacing each
// prefix with a start code. Four-byte prefixes are overwritten in a single
// copy of the payload; other prefix sizes are split and re-joined.
func ConvertToAnnexB(payload []byte, lengthPrefix int) []byte {
	if lengthPrefix == 4 {
		out := bytes.Clone(payload)
		for i := 0; i+4 <= len(out); {
			size := int(binary.BigEndian.Uint32(out[i:]))
			if size <= 0 || i+4+size > len(out) {
				break
			}
			copy(out[i:], StartCode)
			i += 4 + size
		}
		return out
	}
	return JoinAnnexB(splitAVC(payload, lengthPrefix))
}
