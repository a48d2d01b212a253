package uvc

import (
	"time"

	"github.com/rs/zerolog"
)

// Codec narrows the stream request to a payload family.
type Codec string

const (
	CodecAuto       Codec = "auto"
	CodecMJPEG      Codec = "mjpeg"
	CodecYUYV       Codec = "yuyv"
	CodecH264       Codec = "h264"
	CodecH265       Codec = "h265"
	CodecFrameBased Codec = "frame-based"
)

// Config selects a device and sizes the engine. The zero value is usable
// after Normalize fills the defaults in.
type Config struct {
	// device selection
	VendorID     uint16 `yaml:"vendor_id"`
	ProductID    uint16 `yaml:"product_id"`
	SerialNumber string `yaml:"serial_number"`

	// which VS interface to claim on multi-sensor devices, as an index
	// into the advertised streaming interfaces
	StreamingInterface int `yaml:"streaming_interface"`

	// stream request
	Width  uint16  `yaml:"width"`
	Height uint16  `yaml:"height"`
	FPS    float64 `yaml:"fps"`
	Codec  Codec   `yaml:"codec"`

	// scheduler sizing
	NumTransfers       int `yaml:"num_transfers"`
	PacketsPerTransfer int `yaml:"packets_per_transfer"`
	FrameQueueSize     int `yaml:"frame_queue_size"`

	// policy knobs
	DeliverPartial bool  `yaml:"deliver_partial"`
	DropOnOverflow *bool `yaml:"drop_on_overflow"`
	AutoDetachVC   *bool `yaml:"auto_detach_vc"`

	ControlTimeoutMS int `yaml:"control_timeout_ms"`

	// quirk documents directory; empty disables quirk merging
	QuirksDir string `yaml:"quirks_dir"`

	Logger zerolog.Logger `yaml:"-"`
}

// Normalize fills unset fields with their defaults.
func (c Config) Normalize() Config {
	if c.Codec == "" {
		c.Codec = CodecAuto
	}
	if c.NumTransfers <= 0 {
		c.NumTransfers = 12
	}
	if c.PacketsPerTransfer <= 0 {
		c.PacketsPerTransfer = 32
	}
	if c.FrameQueueSize <= 0 {
		c.FrameQueueSize = 8
	}
	if c.DropOnOverflow == nil {
		t := true
		c.DropOnOverflow = &t
	}
	if c.AutoDetachVC == nil {
		t := true
		c.AutoDetachVC = &t
	}
	if c.ControlTimeoutMS <= 0 {
		c.ControlTimeoutMS = 2000
	}
	return c
}

func (c Config) controlTimeout() time.Duration {
	return time.Duration(c.ControlTimeoutMS) * time.Millisecond
}
