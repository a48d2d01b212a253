package descriptors

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/google/uuid"
)

// UncompressedFormatDescriptor as defined in the UVC 1.5 uncompressed
// payload spec, 3.1.1.
type UncompressedFormatDescriptor struct {
	FormatIndex           uint8
	NumFrameDescriptors   uint8
	GUIDFormat            uuid.UUID
	BitsPerPixel          uint8
	DefaultFrameIndex     uint8
	AspectRatioX          uint8
	AspectRatioY          uint8
	InterlaceFlagsBitmask uint8
	CopyProtect           uint8
}

func (ufd *UncompressedFormatDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 27 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed {
		return ErrInvalidDescriptor
	}
	ufd.FormatIndex = buf[3]
	ufd.NumFrameDescriptors = buf[4]
	ufd.GUIDFormat = unmarshalGUID(buf[5:21])
	ufd.BitsPerPixel = buf[21]
	ufd.DefaultFrameIndex = buf[22]
	ufd.AspectRatioX = buf[23]
	ufd.AspectRatioY = buf[24]
	ufd.InterlaceFlagsBitmask = buf[25]
	ufd.CopyProtect = buf[26]
	return nil
}

func (ufd *UncompressedFormatDescriptor) isStreamingInterface() {}

func (ufd *UncompressedFormatDescriptor) Index() uint8     { return ufd.FormatIndex }
func (ufd *UncompressedFormatDescriptor) FourCC() string   { return FourCCFromGUID(ufd.GUIDFormat) }
func (ufd *UncompressedFormatDescriptor) NumFrames() uint8 { return ufd.NumFrameDescriptors }

// UncompressedFrameDescriptor as defined in the UVC 1.5 uncompressed
// payload spec, 3.1.2.
type UncompressedFrameDescriptor struct {
	FrameIndex              uint8
	Capabilities            uint8
	Width, Height           uint16
	MinBitRate, MaxBitRate  uint32
	MaxVideoFrameBufferSize uint32
	DefaultFrameInterval    time.Duration

	ContinuousFrameInterval struct {
		MinFrameInterval, MaxFrameInterval, FrameIntervalStep time.Duration
	}
	DiscreteFrameIntervals []time.Duration
}

func (ufd *UncompressedFrameDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 26 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed {
		return ErrInvalidDescriptor
	}
	ufd.FrameIndex = buf[3]
	ufd.Capabilities = buf[4]
	ufd.Width = binary.LittleEndian.Uint16(buf[5:7])
	ufd.Height = binary.LittleEndian.Uint16(buf[7:9])
	ufd.MinBitRate = binary.LittleEndian.Uint32(buf[9:13])
	ufd.MaxBitRate = binary.LittleEndian.Uint32(buf[13:17])
	ufd.MaxVideoFrameBufferSize = binary.LittleEndian.Uint32(buf[17:21])
	ufd.DefaultFrameInterval = time.Duration(binary.LittleEndian.Uint32(buf[21:25])) * 100 * time.Nanosecond

	continuous, discrete, err := frameIntervals(buf[26:], int(buf[25]))
	if err != nil {
		return err
	}
	ufd.ContinuousFrameInterval.MinFrameInterval = continuous[0]
	ufd.ContinuousFrameInterval.MaxFrameInterval = continuous[1]
	ufd.ContinuousFrameInterval.FrameIntervalStep = continuous[2]
	ufd.DiscreteFrameIntervals = discrete
	return nil
}

func (ufd *UncompressedFrameDescriptor) isStreamingInterface() {}

func (ufd *UncompressedFrameDescriptor) Index() uint8 { return ufd.FrameIndex }

func (ufd *UncompressedFrameDescriptor) Size() (uint16, uint16) { return ufd.Width, ufd.Height }

func (ufd *UncompressedFrameDescriptor) DefaultInterval() time.Duration {
	return ufd.DefaultFrameInterval
}

func (ufd *UncompressedFrameDescriptor) Intervals() []time.Duration {
	return ufd.DiscreteFrameIntervals
}

func (ufd *UncompressedFrameDescriptor) MaxFrameBufferSize() uint32 {
	return ufd.MaxVideoFrameBufferSize
}

func (ufd *UncompressedFrameDescriptor) StillSupported() bool { return ufd.Capabilities&0x01 != 0 }
