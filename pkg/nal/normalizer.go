package nal

import "bytes"

type nalKind int

const (
	kindOther nalKind = iota
	kindParameterSet
	kindIDR
)

type nalClass struct {
	kind nalKind
	slot int
}

type codec interface {
	parameterSlots() int
	classify(nal []byte) nalClass
}

// Normalizer rewrites H.264/H.265 frames into Annex B with parameter sets
// guaranteed before every IDR. The cache is stream-scoped: construct a new
// Normalizer per configure, never share one across streams.
type Normalizer struct {
	codec codec
	// latest parameter set per slot (SPS/PPS, plus VPS for H.265)
	cache [][]byte

	// layout is sticky for the life of the stream
	lengthPrefix   int
	layoutDetected bool

	// set once a decodable IDR has been delivered; inter frames before
	// that point are useless to a decoder and are dropped
	haveKeyframe bool

	dropped uint64
}

func newNormalizer(c codec) *Normalizer {
	return &Normalizer{codec: c, cache: make([][]byte, c.parameterSlots())}
}

// NewH264Normalizer returns a normaliser for H.264 elementary streams.
func NewH264Normalizer() *Normalizer {
	return newNormalizer(h264Codec{})
}

// NewH265Normalizer returns a normaliser for H.265 elementary streams.
func NewH265Normalizer() *Normalizer {
	return newNormalizer(h265Codec{})
}

// ForFourCC maps a stream fourcc to its normaliser, or nil when the codec
// needs no rewriting.
func ForFourCC(fourcc string) *Normalizer {
	switch fourcc {
	case "H264":
		return NewH264Normalizer()
	case "H265", "HEVC":
		return NewH265Normalizer()
	default:
		return nil
	}
}

// Dropped counts frames discarded before the first decodable IDR: inter
// frames that arrive before any keyframe, and IDRs for which the
// parameter-set cache is still incomplete.
func (n *Normalizer) Dropped() uint64 { return n.dropped }

func (n *Normalizer) cacheComplete() bool {
	for _, ps := range n.cache {
		if ps == nil {
			return false
		}
	}
	return true
}

// Normalize returns the payload with parameter sets guaranteed before the
// first IDR, in Annex B form. The second return is false when the frame
// must be dropped: it is an inter frame before any keyframe, or it contains
// an IDR while the parameter-set cache is still incomplete.
func (n *Normalizer) Normalize(payload []byte) ([]byte, bool) {
	if len(payload) == 0 {
		return payload, true
	}

	if !n.layoutDetected {
		n.lengthPrefix = DetectLengthPrefix(payload)
		n.layoutDetected = true
	}

	nalus := Split(payload, n.lengthPrefix)
	if len(nalus) == 0 {
		return payload, true
	}

	hasIDR := false
	psBeforeIDR := true
	seenSlots := make([]bool, len(n.cache))
	for _, nal := range nalus {
		if len(nal) == 0 {
			continue
		}
		switch c := n.codec.classify(nal); c.kind {
		case kindParameterSet:
			n.cache[c.slot] = bytes.Clone(nal)
			seenSlots[c.slot] = true
		case kindIDR:
			hasIDR = true
			for _, seen := range seenSlots {
				if !seen {
					psBeforeIDR = false
				}
			}
		}
	}

	if !hasIDR && !n.haveKeyframe {
		// nothing downstream can decode these yet
		n.dropped++
		return nil, false
	}

	if hasIDR && !psBeforeIDR {
		if !n.cacheComplete() {
			n.dropped++
			return nil, false
		}
		n.haveKeyframe = true
		out := make([][]byte, 0, len(n.cache)+len(nalus))
		out = append(out, n.cache...)
		out = append(out, nalus...)
		return JoinAnnexB(out), true
	}

	if hasIDR {
		n.haveKeyframe = true
	}
	if n.lengthPrefix > 0 {
		return ConvertToAnnexB(payload, n.lengthPrefix), true
	}
	return payload, true
}
