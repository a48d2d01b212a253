package uvc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
	"github.com/jeffwitz/libusb-uvc/pkg/nal"
	"github.com/jeffwitz/libusb-uvc/pkg/transfers"
)

// Frame re-exports the completed frame type.
type Frame = transfers.Frame

// codecMatcher maps a codec preference to a format filter; nil accepts any
// format.
func codecMatcher(c Codec) func(descriptors.FormatDescriptor) bool {
	switch c {
	case CodecMJPEG:
		return func(f descriptors.FormatDescriptor) bool {
			_, ok := f.(*descriptors.MJPEGFormatDescriptor)
			return ok
		}
	case CodecYUYV:
		return func(f descriptors.FormatDescriptor) bool {
			if _, ok := f.(*descriptors.UncompressedFormatDescriptor); !ok {
				return false
			}
			cc := f.FourCC()
			return cc == "YUY2" || cc == "YUYV"
		}
	case CodecH264:
		return func(f descriptors.FormatDescriptor) bool {
			return f.FourCC() == "H264"
		}
	case CodecH265:
		return func(f descriptors.FormatDescriptor) bool {
			cc := f.FourCC()
			return cc == "H265" || cc == "HEVC"
		}
	case CodecFrameBased:
		return func(f descriptors.FormatDescriptor) bool {
			_, ok := f.(*descriptors.FrameBasedFormatDescriptor)
			return ok
		}
	default:
		return nil
	}
}

// StreamInfo reports the negotiated stream configuration.
type StreamInfo struct {
	FourCC        string
	Width, Height uint16
	Interval      time.Duration
	Control       descriptors.VideoProbeCommitControl
	AltSetting    uint8
	PacketSize    uint32
}

// FrameStream is an active stream session: a reader goroutine drains the
// transfer ring through the reassembler and the normaliser into a bounded
// frame queue.
type FrameStream struct {
	dev  *UVCDevice
	si   *transfers.StreamingInterface
	fr   *transfers.FrameReader
	norm *nal.Normalizer
	info StreamInfo

	frames chan *Frame
	eg     errgroup.Group

	mu       sync.Mutex
	err      error
	stopping bool
	stopC    chan struct{}
	stopped  chan struct{}

	dropOnOverflow bool
	stopListener   func()
}

// ConfigureStream matches the configured stream request against the
// device's formats, runs PROBE/COMMIT, reserves bandwidth and starts the
// transfer ring. Only one stream may be active per device.
func (d *UVCDevice) ConfigureStream() (*FrameStream, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		return nil, fmt.Errorf("stream already active")
	}

	info := d.info
	if d.cfg.StreamingInterface < 0 || d.cfg.StreamingInterface >= len(info.StreamingInterfaces) {
		return nil, fmt.Errorf("streaming interface %d out of range", d.cfg.StreamingInterface)
	}
	si := info.StreamingInterfaces[d.cfg.StreamingInterface]

	if err := d.claimStreaming(si); err != nil {
		return nil, err
	}
	fail := func(err error) (*FrameStream, error) {
		d.handle.ReleaseInterface(si.InterfaceNumber())
		return nil, err
	}

	sel, err := si.SelectStream(d.cfg.Width, d.cfg.Height, d.cfg.FPS, codecMatcher(d.cfg.Codec))
	if err != nil {
		return fail(err)
	}
	vpcc, err := si.Negotiate(sel)
	if err != nil {
		return fail(err)
	}
	endpoint, err := si.EndpointAddress()
	if err != nil {
		return fail(err)
	}

	fourcc := sel.Format.FourCC()
	width, height := sel.Frame.Size()

	stream := &FrameStream{
		dev:            d,
		si:             si,
		frames:         make(chan *Frame, d.cfg.FrameQueueSize),
		stopC:          make(chan struct{}),
		stopped:        make(chan struct{}),
		dropOnOverflow: *d.cfg.DropOnOverflow,
		norm:           nal.ForFourCC(fourcc),
	}
	stream.info = StreamInfo{
		FourCC:   fourcc,
		Width:    width,
		Height:   height,
		Interval: vpcc.FrameInterval,
		Control:  *vpcc,
	}

	var pr transfers.PayloadReader
	if si.HasIsochronousEndpoint() {
		alt, packetSize, err := si.SelectAltSetting(endpoint, vpcc.MaxPayloadTransferSize)
		if err != nil {
			return fail(err)
		}
		stream.info.AltSetting = alt
		stream.info.PacketSize = packetSize
		// a stalled endpoint from a previous session would starve the ring
		si.ClearHalt(endpoint)
		pr, err = si.NewIsochronousReader(endpoint, transfers.IsoConfig{
			NumTransfers:       d.cfg.NumTransfers,
			PacketsPerTransfer: d.cfg.PacketsPerTransfer,
			PacketSize:         packetSize,
		})
		if err != nil {
			si.ReleaseAltSetting()
			return fail(err)
		}
	} else {
		pr, err = si.NewBulkReader(endpoint, vpcc.MaxPayloadTransferSize)
		if err != nil {
			return fail(err)
		}
	}

	mjpeg := strings.EqualFold(fourcc, "MJPG")
	expected := uint32(0)
	if _, uncompressed := sel.Format.(*descriptors.UncompressedFormatDescriptor); uncompressed {
		expected = vpcc.MaxVideoFrameSize
	}
	stream.fr = transfers.NewFrameReader(pr, transfers.FrameReaderConfig{
		FourCC:         fourcc,
		Width:          width,
		Height:         height,
		ExpectedSize:   expected,
		MJPEG:          mjpeg,
		DeliverPartial: d.cfg.DeliverPartial,
	}, d.log)

	stream.stopListener = d.startInterruptListener()

	stream.eg.Go(stream.readLoop)
	d.stream = stream
	return stream, nil
}

// readLoop drains the reassembler into the frame queue. With
// drop_on_overflow the oldest queued frame is evicted when the consumer
// lags; otherwise the loop blocks, which stops recycling transfers and lets
// the USB stack apply backpressure.
func (s *FrameStream) readLoop() error {
	defer close(s.frames)
	for {
		frame, err := s.fr.ReadFrame()
		if err != nil {
			s.mu.Lock()
			if s.stopping {
				s.err = ErrStopped
			} else {
				s.err = err
			}
			s.mu.Unlock()
			return nil
		}
		if s.norm != nil {
			payload, ok := s.norm.Normalize(frame.Payload)
			if !ok {
				// not decodable yet (no keyframe or incomplete parameter sets); counted by Dropped()
				continue
			}
			frame.Payload = payload
		}
		if s.dropOnOverflow {
			for {
				select {
				case s.frames <- frame:
				default:
					select {
					case <-s.frames:
					default:
					}
					continue
				}
				break
			}
		} else {
			// blocking send is the backpressure: the ring stops being
			// recycled until the consumer drains
			select {
			case s.frames <- frame:
			case <-s.stopC:
				return nil
			}
		}
	}
}

// Info returns the negotiated stream parameters.
func (s *FrameStream) Info() StreamInfo { return s.info }

// NextFrame blocks for the next completed frame. It returns ErrFrameTimeout
// when no frame arrives in time, ErrStopped after a clean stop, and the
// terminal stream error otherwise.
func (s *FrameStream) NextFrame(timeout time.Duration) (*Frame, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case frame, ok := <-s.frames:
		if !ok {
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			if err == nil {
				err = ErrStopped
			}
			return nil, err
		}
		return frame, nil
	case <-timer:
		return nil, ErrFrameTimeout
	}
}

// Stats snapshots the reassembly counters.
func (s *FrameStream) Stats() transfers.FrameStats { return s.fr.Stats() }

// DroppedBeforeParameterSets counts frames the normaliser discarded while
// waiting for SPS/PPS.
func (s *FrameStream) DroppedBeforeParameterSets() uint64 {
	if s.norm == nil {
		return 0
	}
	return s.norm.Dropped()
}

// Stop cancels all pending transfers, waits for their completions, drops
// the in-progress frame, releases the bandwidth reservation and releases
// the interfaces. It is idempotent.
func (s *FrameStream) Stop() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		<-s.stopped
		return nil
	}
	s.stopping = true
	s.mu.Unlock()
	close(s.stopC)

	// cancelling the ring unblocks the read loop with a Cancelled error
	err := s.fr.Close()
	s.eg.Wait()

	if s.stopListener != nil {
		s.stopListener()
	}

	// release the iso bandwidth before giving the interface back
	s.si.ReleaseAltSetting()
	s.dev.handle.ReleaseInterface(s.si.InterfaceNumber())

	s.dev.mu.Lock()
	if s.dev.stream == s {
		s.dev.stream = nil
	}
	s.dev.mu.Unlock()

	close(s.stopped)
	return err
}
