package descriptors

import (
	"encoding/binary"
	"io"
	"time"
)

// Probe/commit control payload sizes by negotiated UVC version.
const (
	ProbeControlSizeUVC10 = 26
	ProbeControlSizeUVC11 = 34
	ProbeControlSizeUVC15 = 48
)

// ProbeControlSizeForVersion maps the device's bcdUVC to the size of its
// streaming control payload.
func ProbeControlSizeForVersion(bcdUVC uint16) int {
	switch {
	case bcdUVC >= 0x0150:
		return ProbeControlSizeUVC15
	case bcdUVC >= 0x0110:
		return ProbeControlSizeUVC11
	default:
		return ProbeControlSizeUVC10
	}
}

// VideoProbeCommitControl as defined in UVC spec 1.5, 4.3.1.1. The first 26
// bytes are common to every UVC version; 1.1 appends 8 bytes and 1.5 another
// 14.
type VideoProbeCommitControl struct {
	HintBitmask            uint16
	FormatIndex            uint8
	FrameIndex             uint8
	FrameInterval          time.Duration
	KeyFrameRate           uint16
	PFrameRate             uint16
	CompQuality            uint16
	CompWindowSize         uint16
	Delay                  uint16
	MaxVideoFrameSize      uint32
	MaxPayloadTransferSize uint32

	// added in uvc 1.1
	ClockFrequency     uint32
	FramingInfoBitmask uint8
	PreferedVersion    uint8
	MinVersion         uint8
	MaxVersion         uint8

	// added in uvc 1.5
	Usage                     uint8
	BitDepthLuma              uint8
	SettingsBitmask           uint8
	MaxNumberOfRefFramesPlus1 uint8
	RateControlModes          uint16
	LayoutPerStream           [4]uint16
}

func (vpcc *VideoProbeCommitControl) MarshalInto(buf []byte) error {
	if len(buf) < ProbeControlSizeUVC10 {
		return io.ErrShortBuffer
	}
	binary.LittleEndian.PutUint16(buf[0:2], vpcc.HintBitmask)
	buf[2] = vpcc.FormatIndex
	buf[3] = vpcc.FrameIndex
	binary.LittleEndian.PutUint32(buf[4:8], uint32(vpcc.FrameInterval/100/time.Nanosecond))
	binary.LittleEndian.PutUint16(buf[8:10], vpcc.KeyFrameRate)
	binary.LittleEndian.PutUint16(buf[10:12], vpcc.PFrameRate)
	binary.LittleEndian.PutUint16(buf[12:14], vpcc.CompQuality)
	binary.LittleEndian.PutUint16(buf[14:16], vpcc.CompWindowSize)
	binary.LittleEndian.PutUint16(buf[16:18], vpcc.Delay)
	binary.LittleEndian.PutUint32(buf[18:22], vpcc.MaxVideoFrameSize)
	binary.LittleEndian.PutUint32(buf[22:26], vpcc.MaxPayloadTransferSize)
	if len(buf) >= ProbeControlSizeUVC11 {
		binary.LittleEndian.PutUint32(buf[26:30], vpcc.ClockFrequency)
		buf[30] = vpcc.FramingInfoBitmask
		buf[31] = vpcc.PreferedVersion
		buf[32] = vpcc.MinVersion
		buf[33] = vpcc.MaxVersion
	}
	if len(buf) >= ProbeControlSizeUVC15 {
		buf[34] = vpcc.Usage
		buf[35] = vpcc.BitDepthLuma
		buf[36] = vpcc.SettingsBitmask
		buf[37] = vpcc.MaxNumberOfRefFramesPlus1
		binary.LittleEndian.PutUint16(buf[38:40], vpcc.RateControlModes)
		for i, layout := range vpcc.LayoutPerStream {
			binary.LittleEndian.PutUint16(buf[40+2*i:42+2*i], layout)
		}
	}
	return nil
}

func (vpcc *VideoProbeCommitControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ProbeControlSizeUVC15)
	return buf, vpcc.MarshalInto(buf)
}

func (vpcc *VideoProbeCommitControl) UnmarshalBinary(buf []byte) error {
	// not length-prefixed; the control transfer layer strips the setup
	// packet before this payload is seen.
	if len(buf) < ProbeControlSizeUVC10 {
		return io.ErrShortBuffer
	}
	vpcc.HintBitmask = binary.LittleEndian.Uint16(buf[0:2])
	vpcc.FormatIndex = buf[2]
	vpcc.FrameIndex = buf[3]
	vpcc.FrameInterval = time.Duration(binary.LittleEndian.Uint32(buf[4:8])) * 100 * time.Nanosecond
	vpcc.KeyFrameRate = binary.LittleEndian.Uint16(buf[8:10])
	vpcc.PFrameRate = binary.LittleEndian.Uint16(buf[10:12])
	vpcc.CompQuality = binary.LittleEndian.Uint16(buf[12:14])
	vpcc.CompWindowSize = binary.LittleEndian.Uint16(buf[14:16])
	vpcc.Delay = binary.LittleEndian.Uint16(buf[16:18])
	vpcc.MaxVideoFrameSize = binary.LittleEndian.Uint32(buf[18:22])
	vpcc.MaxPayloadTransferSize = binary.LittleEndian.Uint32(buf[22:26])

	if len(buf) >= ProbeControlSizeUVC11 {
		vpcc.ClockFrequency = binary.LittleEndian.Uint32(buf[26:30])
		vpcc.FramingInfoBitmask = buf[30]
		vpcc.PreferedVersion = buf[31]
		vpcc.MinVersion = buf[32]
		vpcc.MaxVersion = buf[33]
	}

	if len(buf) >= ProbeControlSizeUVC15 {
		vpcc.Usage = buf[34]
		vpcc.BitDepthLuma = buf[35]
		vpcc.SettingsBitmask = buf[36]
		vpcc.MaxNumberOfRefFramesPlus1 = buf[37]
		vpcc.RateControlModes = binary.LittleEndian.Uint16(buf[38:40])
		for i := range vpcc.LayoutPerStream {
			vpcc.LayoutPerStream[i] = binary.LittleEndian.Uint16(buf[40+2*i : 42+2*i])
		}
	}
	return nil
}

// FrameInterval100ns reports the frame interval in 100 ns units as carried
// on the wire.
func (vpcc *VideoProbeCommitControl) FrameInterval100ns() uint32 {
	return uint32(vpcc.FrameInterval / 100 / time.Nanosecond)
}

// VideoStillProbeCommitControl as defined in UVC spec 1.5, 4.3.1.2.
type VideoStillProbeCommitControl struct {
	FormatIndex            uint8
	FrameIndex             uint8
	CompressionIndex       uint8
	MaxVideoFrameSize      uint32
	MaxPayloadTransferSize uint32
}

func (vspcc *VideoStillProbeCommitControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 11)
	buf[0] = vspcc.FormatIndex
	buf[1] = vspcc.FrameIndex
	buf[2] = vspcc.CompressionIndex
	binary.LittleEndian.PutUint32(buf[3:7], vspcc.MaxVideoFrameSize)
	binary.LittleEndian.PutUint32(buf[7:11], vspcc.MaxPayloadTransferSize)
	return buf, nil
}

func (vspcc *VideoStillProbeCommitControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 11 {
		return io.ErrShortBuffer
	}
	vspcc.FormatIndex = buf[0]
	vspcc.FrameIndex = buf[1]
	vspcc.CompressionIndex = buf[2]
	vspcc.MaxVideoFrameSize = binary.LittleEndian.Uint32(buf[3:7])
	vspcc.MaxPayloadTransferSize = binary.LittleEndian.Uint32(buf[7:11])
	return nil
}
