package descriptors

import (
	"errors"
	"fmt"
)

var ErrInvalidDescriptor = errors.New("invalid descriptor")

// DescriptorError reports a malformed block inside a configuration
// descriptor walk. Offset is the byte position of the offending block
// relative to the start of the walked buffer.
type DescriptorError struct {
	Offset int
	Reason string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor error at offset %d: %s", e.Offset, e.Reason)
}
