package nal

// H.265 NAL unit types, ITU-T H.265 section 7.4.2.2.
const (
	H265TypeIDRWithRADL = 19
	H265TypeIDRNoLP     = 20
	H265TypeVPS         = 32
	H265TypeSPS         = 33
	H265TypePPS         = 34
)

func h265Type(nal []byte) byte {
	return (nal[0] >> 1) & 0x3F
}

type h265Codec struct{}

func (h265Codec) parameterSlots() int { return 3 }

func (h265Codec) classify(nal []byte) nalClass {
	switch h265Type(nal) {
	case H265TypeVPS:
		return nalClass{kind: kindParameterSet, slot: 0}
	case H265TypeSPS:
		return nalClass{kind: kindParameterSet, slot: 1}
	case H265TypePPS:
		return nalClass{kind: kindParameterSet, slot: 2}
	case H265TypeIDRWithRADL, H265TypeIDRNoLP:
		return nalClass{kind: kindIDR}
	default:
		return nalClass{kind: kindOther}
	}
}
