package nal

// H.264 NAL unit types, ITU-T H.264 section 7.4.1.
const (
	H264TypePFrame = 1
	H264TypeIDR    = 5
	H264TypeSEI    = 6
	H264TypeSPS    = 7
	H264TypePPS    = 8
	H264TypeAUD    = 9
)

func h264Type(nal []byte) byte {
	return nal[0] & 0x1F
}

type h264Codec struct{}

func (h264Codec) parameterSlots() int { return 2 }

func (h264Codec) classify(nal []byte) nalClass {
	switch h264Type(nal) {
	case H264TypeSPS:
		return nalClass{kind: kindParameterSet, slot: 0}
	case H264TypePPS:
		return nalClass{kind: kindParameterSet, slot: 1}
	case H264TypeIDR:
		return nalClass{kind: kindIDR}
	default:
		return nalClass{kind: kindOther}
	}
}
