package descriptors

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/google/uuid"
)

// FrameBasedFormatDescriptor as defined in the UVC 1.5 frame-based payload
// spec, 3.1.1. H.264 and H.265 elementary streams are carried this way,
// identified by the fourcc embedded in the format GUID.
type FrameBasedFormatDescriptor struct {
	FormatIndex         uint8
	NumFrameDescriptors uint8
	GUIDFormat          uuid.UUID
	BitsPerPixel        uint8
	DefaultFrameIndex   uint8
	AspectRatioX        uint8
	AspectRatioY        uint8
	InterlaceFlags      uint8
	CopyProtect         uint8
	VariableSize        uint8
}

func (fbfd *FrameBasedFormatDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 28 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeFormatFrameBased {
		return ErrInvalidDescriptor
	}
	fbfd.FormatIndex = buf[3]
	fbfd.NumFrameDescriptors = buf[4]
	fbfd.GUIDFormat = unmarshalGUID(buf[5:21])
	fbfd.BitsPerPixel = buf[21]
	fbfd.DefaultFrameIndex = buf[22]
	fbfd.AspectRatioX = buf[23]
	fbfd.AspectRatioY = buf[24]
	fbfd.InterlaceFlags = buf[25]
	fbfd.CopyProtect = buf[26]
	fbfd.VariableSize = buf[27]
	return nil
}

func (fbfd *FrameBasedFormatDescriptor) isStreamingInterface() {}

func (fbfd *FrameBasedFormatDescriptor) Index() uint8     { return fbfd.FormatIndex }
func (fbfd *FrameBasedFormatDescriptor) FourCC() string   { return FourCCFromGUID(fbfd.GUIDFormat) }
func (fbfd *FrameBasedFormatDescriptor) NumFrames() uint8 { return fbfd.NumFrameDescriptors }

// FrameBasedFrameDescriptor as defined in the UVC 1.5 frame-based payload
// spec, 3.1.2.
type FrameBasedFrameDescriptor struct {
	FrameIndex             uint8
	Capabilities           uint8
	Width, Height          uint16
	MinBitRate, MaxBitRate uint32
	DefaultFrameInterval   time.Duration
	BytesPerLine           uint32

	ContinuousFrameInterval struct {
		MinFrameInterval, MaxFrameInterval, FrameIntervalStep time.Duration
	}
	DiscreteFrameIntervals []time.Duration
}

func (fbfd *FrameBasedFrameDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 26 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeFrameFrameBased {
		return ErrInvalidDescriptor
	}
	fbfd.FrameIndex = buf[3]
	fbfd.Capabilities = buf[4]
	fbfd.Width = binary.LittleEndian.Uint16(buf[5:7])
	fbfd.Height = binary.LittleEndian.Uint16(buf[7:9])
	fbfd.MinBitRate = binary.LittleEndian.Uint32(buf[9:13])
	fbfd.MaxBitRate = binary.LittleEndian.Uint32(buf[13:17])
	fbfd.DefaultFrameInterval = time.Duration(binary.LittleEndian.Uint32(buf[17:21])) * 100 * time.Nanosecond
	fbfd.BytesPerLine = binary.LittleEndian.Uint32(buf[22:26])

	continuous, discrete, err := frameIntervals(buf[26:], int(buf[21]))
	if err != nil {
		return err
	}
	fbfd.ContinuousFrameInterval.MinFrameInterval = continuous[0]
	fbfd.ContinuousFrameInterval.MaxFrameInterval = continuous[1]
	fbfd.ContinuousFrameInterval.FrameIntervalStep = continuous[2]
	fbfd.DiscreteFrameIntervals = discrete
	return nil
}

func (fbfd *FrameBasedFrameDescriptor) isStreamingInterface() {}

func (fbfd *FrameBasedFrameDescriptor) Index() uint8 { return fbfd.FrameIndex }

func (fbfd *FrameBasedFrameDescriptor) Size() (uint16, uint16) { return fbfd.Width, fbfd.Height }

func (fbfd *FrameBasedFrameDescriptor) DefaultInterval() time.Duration {
	return fbfd.DefaultFrameInterval
}

func (fbfd *FrameBasedFrameDescriptor) Intervals() []time.Duration {
	return fbfd.DiscreteFrameIntervals
}

// MaxFrameBufferSize is not advertised by frame-based frames; the negotiated
// dwMaxVideoFrameSize from PROBE is authoritative instead.
func (fbfd *FrameBasedFrameDescriptor) MaxFrameBufferSize() uint32 { return 0 }

func (fbfd *FrameBasedFrameDescriptor) StillSupported() bool { return fbfd.Capabilities&0x01 != 0 }
