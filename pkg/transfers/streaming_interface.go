package transfers

import (
	"bytes"
	"errors"
	"fmt"
	"syscall"
	"time"

	usb "github.com/kevmo314/go-usb"
	"github.com/rs/zerolog"

	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
	"github.com/jeffwitz/libusb-uvc/pkg/requests"
)

// StreamingInterface drives one Video Streaming interface: PROBE/COMMIT
// negotiation, alternate-setting selection and reader construction.
type StreamingInterface struct {
	handle  *usb.DeviceHandle
	iface   *usb.Interface
	bcdUVC  uint16 // cached since it's used a lot
	timeout time.Duration
	log     zerolog.Logger

	Descriptors []descriptors.StreamingInterfaceDescriptor
}

func NewStreamingInterface(handle *usb.DeviceHandle, iface *usb.Interface, bcdUVC uint16, descs []descriptors.StreamingInterfaceDescriptor, timeout time.Duration, log zerolog.Logger) *StreamingInterface {
	return &StreamingInterface{
		handle:      handle,
		iface:       iface,
		bcdUVC:      bcdUVC,
		timeout:     timeout,
		log:         log,
		Descriptors: descs,
	}
}

func (si *StreamingInterface) InterfaceNumber() uint8 {
	return si.iface.AltSettings[0].InterfaceNumber
}

func (si *StreamingInterface) UVCVersionString() string {
	return fmt.Sprintf("%x.%02x", si.bcdUVC>>8, si.bcdUVC&0xff)
}

func (si *StreamingInterface) FormatGroups() []descriptors.FormatGroup {
	return descriptors.GroupFormats(si.Descriptors)
}

func (si *StreamingInterface) InputHeaderDescriptors() []*descriptors.InputHeaderDescriptor {
	var descs []*descriptors.InputHeaderDescriptor
	for _, desc := range si.Descriptors {
		if d, ok := desc.(*descriptors.InputHeaderDescriptor); ok {
			descs = append(descs, d)
		}
	}
	return descs
}

// EndpointAddress returns the video data endpoint advertised by the first
// input header.
func (si *StreamingInterface) EndpointAddress() (uint8, error) {
	inputs := si.InputHeaderDescriptors()
	if len(inputs) == 0 {
		return 0, fmt.Errorf("no input header descriptors found")
	}
	return inputs[0].EndpointAddress, nil
}

// HasIsochronousEndpoint reports whether the interface has more than one
// alternate setting, which is how isochronous interfaces expose their
// endpoint; endpoint types are not inspected. Bulk-only interfaces expose
// their endpoint on alt 0.
func (si *StreamingInterface) HasIsochronousEndpoint() bool {
	return len(si.iface.AltSettings) > 1
}

// StreamSelection is the outcome of matching an application request against
// the advertised formats.
type StreamSelection struct {
	Format   descriptors.FormatDescriptor
	Frame    descriptors.FrameDescriptor
	Interval time.Duration
}

// SelectStream picks the format/frame pair matching the requested size and
// the closest advertised interval for the requested rate. The match callback
// filters formats by codec preference; nil accepts every format.
func (si *StreamingInterface) SelectStream(width, height uint16, fps float64, match func(descriptors.FormatDescriptor) bool) (*StreamSelection, error) {
	for _, group := range si.FormatGroups() {
		if match != nil && !match(group.Format) {
			continue
		}
		for _, frame := range group.Frames {
			w, h := frame.Size()
			if (width != 0 && w != width) || (height != 0 && h != height) {
				continue
			}
			return &StreamSelection{
				Format:   group.Format,
				Frame:    frame,
				Interval: pickInterval(frame, fps),
			}, nil
		}
	}
	return nil, &NegotiationError{Kind: NegotiationNoMatchingFormat}
}

// pickInterval chooses the advertised interval closest to the requested
// rate, preferring the largest interval that still meets it. A zero rate
// selects the frame's default.
func pickInterval(frame descriptors.FrameDescriptor, fps float64) time.Duration {
	if fps <= 0 {
		return frame.DefaultInterval()
	}
	requested := time.Duration(float64(time.Second) / fps)
	intervals := frame.Intervals()
	if len(intervals) == 0 {
		// continuous range; the device clips to its min/max
		return requested
	}
	var best time.Duration
	for _, interval := range intervals {
		if interval <= requested && interval > best {
			best = interval
		}
	}
	if best == 0 {
		best = intervals[0]
		for _, interval := range intervals {
			if interval < best {
				best = interval
			}
		}
	}
	return best
}

// announcedControlLength asks the device how long its probe control payload
// is. Zero means the device did not answer.
func (si *StreamingInterface) announcedControlLength() int {
	buf := make([]byte, 2)
	if err := si.getControl(requests.VideoStreamingInterfaceControlSelectorProbeControl, requests.RequestCodeGetLen, buf); err != nil {
		return 0
	}
	return int(uint16(buf[0]) | uint16(buf[1])<<8)
}

// probeLengths orders the candidate control payload sizes: the announced
// length first, then the version-implied size, then the remaining sizes.
// Quirky firmware frequently rejects the size its bcdUVC implies.
func (si *StreamingInterface) probeLengths() []int {
	candidates := []int{
		si.announcedControlLength(),
		descriptors.ProbeControlSizeForVersion(si.bcdUVC),
		descriptors.ProbeControlSizeUVC15,
		descriptors.ProbeControlSizeUVC11,
		descriptors.ProbeControlSizeUVC10,
	}
	var lengths []int
	for _, c := range candidates {
		if c != descriptors.ProbeControlSizeUVC10 && c != descriptors.ProbeControlSizeUVC11 && c != descriptors.ProbeControlSizeUVC15 {
			continue
		}
		seen := false
		for _, l := range lengths {
			if l == c {
				seen = true
				break
			}
		}
		if !seen {
			lengths = append(lengths, c)
		}
	}
	return lengths
}

const maxProbeRounds = 3

// Negotiate runs the PROBE/COMMIT handshake for the selected stream and
// returns the committed streaming control.
func (si *StreamingInterface) Negotiate(sel *StreamSelection) (*descriptors.VideoProbeCommitControl, error) {
	var lastErr error
	for _, length := range si.probeLengths() {
		vpcc, err := si.negotiateWithLength(sel, length)
		if err == nil {
			return vpcc, nil
		}
		lastErr = err
		var ne *NegotiationError
		if errors.As(err, &ne) && ne.Kind == NegotiationCommitStalled {
			return nil, err
		}
		si.log.Warn().Int("length", length).Err(err).Msg("probe length rejected, trying next")
	}
	if lastErr == nil {
		lastErr = &NegotiationError{Kind: NegotiationProbeUnstable}
	}
	return nil, lastErr
}

func (si *StreamingInterface) negotiateWithLength(sel *StreamSelection, length int) (*descriptors.VideoProbeCommitControl, error) {
	buf := make([]byte, length)

	// seed from the device's current view, falling back to its defaults
	if err := si.getControl(requests.VideoStreamingInterfaceControlSelectorProbeControl, requests.RequestCodeGetCur, buf); err != nil {
		if err := si.getControl(requests.VideoStreamingInterfaceControlSelectorProbeControl, requests.RequestCodeGetDef, buf); err != nil {
			clear(buf)
		}
	}

	vpcc := &descriptors.VideoProbeCommitControl{}
	if err := vpcc.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	vpcc.HintBitmask = 0x0001 // dwFrameInterval is fixed
	vpcc.FormatIndex = sel.Format.Index()
	vpcc.FrameIndex = sel.Frame.Index()
	vpcc.FrameInterval = sel.Interval
	if err := vpcc.MarshalInto(buf); err != nil {
		return nil, err
	}

	var prev []byte
	stable := false
	for round := 0; round < maxProbeRounds; round++ {
		if err := si.setControl(requests.VideoStreamingInterfaceControlSelectorProbeControl, buf); err != nil {
			return nil, fmt.Errorf("probe SET_CUR: %w", err)
		}
		if err := si.getControl(requests.VideoStreamingInterfaceControlSelectorProbeControl, requests.RequestCodeGetCur, buf); err != nil {
			return nil, fmt.Errorf("probe GET_CUR: %w", err)
		}
		si.log.Debug().Int("round", round).Hex("payload", buf).Msg("probe")
		if prev != nil && bytes.Equal(prev, buf) {
			stable = true
			break
		}
		prev = bytes.Clone(buf)
	}
	if !stable {
		return nil, &NegotiationError{Kind: NegotiationProbeUnstable}
	}

	if err := si.setControl(requests.VideoStreamingInterfaceControlSelectorCommitControl, buf); err != nil {
		return nil, &NegotiationError{Kind: NegotiationCommitStalled, Err: err}
	}

	if err := vpcc.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	si.log.Info().
		Uint8("format", vpcc.FormatIndex).
		Uint8("frame", vpcc.FrameIndex).
		Uint32("maxVideoFrameSize", vpcc.MaxVideoFrameSize).
		Uint32("maxPayloadTransferSize", vpcc.MaxPayloadTransferSize).
		Msg("stream committed")
	return vpcc, nil
}

// effectivePacketSize folds the additional-transactions-per-microframe
// multiplier from bits 12..11 into the 11-bit packet size.
func effectivePacketSize(wMaxPacketSize uint16) uint32 {
	size := uint32(wMaxPacketSize & 0x07ff)
	return size * (1 + uint32((wMaxPacketSize>>11)&3))
}

// SelectAltSetting scans the interface's alternate settings for the one
// whose isochronous endpoint sustains the negotiated payload size, preferring
// the smallest fit to keep the bandwidth reservation low, and activates it.
//
// UVC spec 1.5, section 2.4.3: alternate setting zero is the mandatory
// zero-bandwidth setting and never carries the video endpoint.
func (si *StreamingInterface) SelectAltSetting(endpointAddress uint8, payloadSize uint32) (alt uint8, packetSize uint32, err error) {
	found := false
	for _, setting := range si.iface.AltSettings {
		if setting.NumEndpoints == 0 {
			continue
		}
		for _, ep := range setting.Endpoints {
			if ep.EndpointAddr != endpointAddress {
				continue
			}
			size := effectivePacketSize(ep.MaxPacketSize)
			if ep.SSCompanion != nil {
				size = uint32(ep.SSCompanion.BytesPerInterval)
			}
			if size < payloadSize {
				continue
			}
			if !found || size < packetSize {
				found = true
				alt = setting.AlternateSetting
				packetSize = size
			}
		}
	}
	if !found {
		return 0, 0, &NegotiationError{Kind: NegotiationNoAltSettingFits}
	}
	if err := si.handle.SetInterfaceAltSetting(si.InterfaceNumber(), alt); err != nil {
		return 0, 0, fmt.Errorf("SET_INTERFACE(%d): %w", alt, err)
	}
	si.log.Debug().Uint8("alt", alt).Uint32("packetSize", packetSize).Msg("alt setting selected")
	return alt, packetSize, nil
}

// ReleaseAltSetting returns the interface to the zero-bandwidth setting.
func (si *StreamingInterface) ReleaseAltSetting() error {
	return si.handle.SetInterfaceAltSetting(si.InterfaceNumber(), 0)
}

// ClearHalt recovers the video endpoint after a stall.
func (si *StreamingInterface) ClearHalt(endpointAddress uint8) error {
	return si.handle.ClearHalt(endpointAddress)
}

func (si *StreamingInterface) getControl(selector requests.VideoStreamingInterfaceControlSelector, request requests.RequestCode, buf []byte) error {
	_, err := si.handle.ControlTransfer(
		uint8(requests.RequestTypeVideoInterfaceGetRequest),
		uint8(request),
		uint16(selector)<<8,
		uint16(si.InterfaceNumber()),
		buf,
		si.timeout,
	)
	return mapUSBError(err)
}

func (si *StreamingInterface) setControl(selector requests.VideoStreamingInterfaceControlSelector, buf []byte) error {
	_, err := si.handle.ControlTransfer(
		uint8(requests.RequestTypeVideoInterfaceSetRequest),
		uint8(requests.RequestCodeSetCur),
		uint16(selector)<<8,
		uint16(si.InterfaceNumber()),
		buf,
		si.timeout,
	)
	return mapUSBError(err)
}

// mapUSBError folds usbfs errno values into the transfer error taxonomy.
func mapUSBError(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EPIPE:
			return &TransferError{Kind: TransferStall, Err: err}
		case syscall.ENODEV, syscall.ESHUTDOWN:
			return &TransferError{Kind: TransferNoDevice, Err: err}
		case syscall.EOVERFLOW:
			return &TransferError{Kind: TransferOverflow, Err: err}
		case syscall.ECONNRESET, syscall.ENOENT:
			return &TransferError{Kind: TransferCancelled, Err: err}
		}
	}
	if errors.Is(err, usb.ErrPipe) {
		return &TransferError{Kind: TransferStall, Err: err}
	}
	if errors.Is(err, usb.ErrNoDevice) || errors.Is(err, usb.ErrDeviceNotFound) {
		return &TransferError{Kind: TransferNoDevice, Err: err}
	}
	return err
}
