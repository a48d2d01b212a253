// This file implements the descriptors as defined in the UVC spec 1.5, section 3.9.
package descriptors

import (
	"encoding"
	"encoding/binary"
	"io"
	"time"
)

// StreamingInterfaceDescriptor is the sum type of every class-specific
// descriptor that can appear inside a VS interface.
type StreamingInterfaceDescriptor interface {
	encoding.BinaryUnmarshaler
	isStreamingInterface()
}

// FormatDescriptor describes one codec advertised by a VS interface. The
// format index is the 1-based position of the format within the interface.
type FormatDescriptor interface {
	StreamingInterfaceDescriptor
	Index() uint8
	FourCC() string
	NumFrames() uint8
}

// FrameDescriptor describes one (width, height) combination of a format.
type FrameDescriptor interface {
	StreamingInterfaceDescriptor
	Index() uint8
	Size() (width, height uint16)
	DefaultInterval() time.Duration
	Intervals() []time.Duration
	MaxFrameBufferSize() uint32
	StillSupported() bool
}

// UnmarshalStreamingInterface dispatches on bDescriptorSubtype. A nil
// descriptor with a nil error means the subtype is unknown and the block
// should be skipped.
func UnmarshalStreamingInterface(buf []byte) (StreamingInterfaceDescriptor, error) {
	if len(buf) < 3 {
		return nil, io.ErrShortBuffer
	}
	var desc StreamingInterfaceDescriptor
	switch VideoStreamingInterfaceDescriptorSubtype(buf[2]) {
	case VideoStreamingInterfaceDescriptorSubtypeInputHeader:
		desc = &InputHeaderDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeOutputHeader:
		desc = &OutputHeaderDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeStillImageFrame:
		desc = &StillImageFrameDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed:
		desc = &UncompressedFormatDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed:
		desc = &UncompressedFrameDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFormatMJPEG:
		desc = &MJPEGFormatDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFrameMJPEG:
		desc = &MJPEGFrameDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFormatFrameBased:
		desc = &FrameBasedFormatDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeFrameFrameBased:
		desc = &FrameBasedFrameDescriptor{}
	case VideoStreamingInterfaceDescriptorSubtypeColorFormat:
		desc = &ColorMatchingDescriptor{}
	default:
		return nil, nil
	}
	return desc, desc.UnmarshalBinary(buf)
}

// InputHeaderDescriptor as defined in UVC spec 1.5, 3.9.2.1
type InputHeaderDescriptor struct {
	TotalLength        uint16
	EndpointAddress    uint8
	InfoBitmask        uint8
	TerminalLink       uint8
	StillCaptureMethod uint8
	TriggerSupport     uint8
	TriggerUsage       uint8
	ControlBitmasks    [][]byte
}

func (ihd *InputHeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 13 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeInputHeader {
		return ErrInvalidDescriptor
	}
	p := int(buf[3])
	ihd.TotalLength = binary.LittleEndian.Uint16(buf[4:6])
	ihd.EndpointAddress = buf[6]
	ihd.InfoBitmask = buf[7]
	ihd.TerminalLink = buf[8]
	ihd.StillCaptureMethod = buf[9]
	ihd.TriggerSupport = buf[10]
	ihd.TriggerUsage = buf[11]
	n := int(buf[12])
	if len(buf) < 13+p*n {
		return io.ErrShortBuffer
	}
	ihd.ControlBitmasks = make([][]byte, p)
	for i := 0; i < p; i++ {
		ihd.ControlBitmasks[i] = make([]byte, n)
		copy(ihd.ControlBitmasks[i], buf[13+i*n:13+(i+1)*n])
	}
	return nil
}

func (ihd *InputHeaderDescriptor) isStreamingInterface() {}

// OutputHeaderDescriptor as defined in UVC spec 1.5, 3.9.2.2
type OutputHeaderDescriptor struct {
	TotalLength     uint16
	EndpointAddress uint8
	TerminalLink    uint8
	ControlBitmasks [][]byte
}

func (ohd *OutputHeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 9 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeOutputHeader {
		return ErrInvalidDescriptor
	}
	p := int(buf[3])
	ohd.TotalLength = binary.LittleEndian.Uint16(buf[4:6])
	ohd.EndpointAddress = buf[6]
	ohd.TerminalLink = buf[7]
	n := int(buf[8])
	if len(buf) < 9+p*n {
		return io.ErrShortBuffer
	}
	ohd.ControlBitmasks = make([][]byte, p)
	for i := 0; i < p; i++ {
		ohd.ControlBitmasks[i] = make([]byte, n)
		copy(ohd.ControlBitmasks[i], buf[9+i*n:9+(i+1)*n])
	}
	return nil
}

func (ohd *OutputHeaderDescriptor) isStreamingInterface() {}

// StillImageFrameDescriptor as defined in UVC spec 1.5, 3.9.2.5
type StillImageFrameDescriptor struct {
	EndpointAddress   uint8
	ImageSizePatterns []struct {
		Width, Height uint16
	}
	CompressionPatterns []uint8
}

func (sifd *StillImageFrameDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 5 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeStillImageFrame {
		return ErrInvalidDescriptor
	}
	sifd.EndpointAddress = buf[3]
	n := int(buf[4])
	if len(buf) < 6+n*4 {
		return io.ErrShortBuffer
	}
	sifd.ImageSizePatterns = make([]struct{ Width, Height uint16 }, n)
	for i := 0; i < n; i++ {
		sifd.ImageSizePatterns[i].Width = binary.LittleEndian.Uint16(buf[5+4*i : 7+4*i])
		sifd.ImageSizePatterns[i].Height = binary.LittleEndian.Uint16(buf[7+4*i : 9+4*i])
	}
	m := int(buf[5+n*4])
	if len(buf) < 6+n*4+m {
		return io.ErrShortBuffer
	}
	sifd.CompressionPatterns = make([]uint8, m)
	copy(sifd.CompressionPatterns, buf[6+n*4:6+n*4+m])
	return nil
}

func (sifd *StillImageFrameDescriptor) isStreamingInterface() {}

// ColorMatchingDescriptor as defined in UVC spec 1.5, 3.9.2.6
type ColorMatchingDescriptor struct {
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
}

func (cmd *ColorMatchingDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < int(buf[0]) || buf[0] < 6 {
		return io.ErrShortBuffer
	}
	if ClassSpecificDescriptorType(buf[1]) != ClassSpecificDescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	if VideoStreamingInterfaceDescriptorSubtype(buf[2]) != VideoStreamingInterfaceDescriptorSubtypeColorFormat {
		return ErrInvalidDescriptor
	}
	cmd.ColorPrimaries = buf[3]
	cmd.TransferCharacteristics = buf[4]
	cmd.MatrixCoefficients = buf[5]
	return nil
}

func (cmd *ColorMatchingDescriptor) isStreamingInterface() {}

// frameIntervals parses the trailing interval table shared by every frame
// descriptor layout. n == 0 selects the continuous encoding.
func frameIntervals(buf []byte, n int) (continuous [3]time.Duration, discrete []time.Duration, err error) {
	interval := func(off int) time.Duration {
		return time.Duration(binary.LittleEndian.Uint32(buf[off:off+4])) * 100 * time.Nanosecond
	}
	if n == 0 {
		if len(buf) < 12 {
			return continuous, nil, io.ErrShortBuffer
		}
		continuous[0] = interval(0)
		continuous[1] = interval(4)
		continuous[2] = interval(8)
		return continuous, nil, nil
	}
	if len(buf) < n*4 {
		return continuous, nil, io.ErrShortBuffer
	}
	discrete = make([]time.Duration, n)
	for i := 0; i < n; i++ {
		discrete[i] = interval(i * 4)
	}
	return continuous, discrete, nil
}
