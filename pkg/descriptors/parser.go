package descriptors

import (
	"errors"
	"io"
)

// walk iterates the class-specific descriptor blocks of an interface's extra
// bytes. Each block is at least bLength bytes; a bLength shorter than two
// would never advance the cursor and is rejected.
func walk(buf []byte, fn func(offset int, block []byte) error) error {
	for i := 0; i < len(buf); {
		length := int(buf[i])
		if length < 2 {
			return &DescriptorError{Offset: i, Reason: "bLength shorter than two bytes"}
		}
		if i+length > len(buf) {
			return &DescriptorError{Offset: i, Reason: "descriptor truncated"}
		}
		if err := fn(i, buf[i:i+length]); err != nil {
			return err
		}
		i += length
	}
	return nil
}

// ParseControlInterface parses every class-specific block of a Video Control
// interface. Unknown subtypes are skipped; truncated blocks are fatal.
func ParseControlInterface(buf []byte) ([]ControlInterface, error) {
	var descs []ControlInterface
	err := walk(buf, func(offset int, block []byte) error {
		if ClassSpecificDescriptorType(block[1]) != ClassSpecificDescriptorTypeInterface {
			return nil
		}
		desc, err := UnmarshalControlInterface(block)
		if err != nil {
			return wrapBlockError(offset, err)
		}
		if desc != nil {
			descs = append(descs, desc)
		}
		return nil
	})
	return descs, err
}

// ParseStreamingInterface parses every class-specific block of a Video
// Streaming interface.
func ParseStreamingInterface(buf []byte) ([]StreamingInterfaceDescriptor, error) {
	var descs []StreamingInterfaceDescriptor
	err := walk(buf, func(offset int, block []byte) error {
		if ClassSpecificDescriptorType(block[1]) != ClassSpecificDescriptorTypeInterface {
			return nil
		}
		desc, err := UnmarshalStreamingInterface(block)
		if err != nil {
			return wrapBlockError(offset, err)
		}
		if desc != nil {
			descs = append(descs, desc)
		}
		return nil
	})
	return descs, err
}

func wrapBlockError(offset int, err error) error {
	if errors.Is(err, io.ErrShortBuffer) {
		return &DescriptorError{Offset: offset, Reason: "descriptor truncated"}
	}
	return &DescriptorError{Offset: offset, Reason: err.Error()}
}

// FormatGroup binds a format descriptor to the frame descriptors that follow
// it. A FORMAT block implicitly opens a group terminated by the next FORMAT
// or the end of the interface.
type FormatGroup struct {
	Format FormatDescriptor
	Frames []FrameDescriptor
	Still  *StillImageFrameDescriptor
	Color  *ColorMatchingDescriptor
}

// GroupFormats arranges a parsed VS descriptor list into per-format groups.
func GroupFormats(descs []StreamingInterfaceDescriptor) []FormatGroup {
	var groups []FormatGroup
	for _, desc := range descs {
		switch d := desc.(type) {
		case FormatDescriptor:
			groups = append(groups, FormatGroup{Format: d})
		case FrameDescriptor:
			if len(groups) > 0 {
				g := &groups[len(groups)-1]
				g.Frames = append(g.Frames, d)
			}
		case *StillImageFrameDescriptor:
			if len(groups) > 0 {
				groups[len(groups)-1].Still = d
			}
		case *ColorMatchingDescriptor:
			if len(groups) > 0 {
				groups[len(groups)-1].Color = d
			}
		}
	}
	return groups
}
