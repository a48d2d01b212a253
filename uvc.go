// Package uvc implements a host-side USB Video Class streaming engine over
// usbfs: descriptor parsing, control validation, PROBE/COMMIT negotiation,
// isochronous streaming and frame reassembly, with the bitstream quirks of
// consumer webcams papered over.
package uvc

import (
	"fmt"
	"sync"
	"sync/atomic"

	usb "github.com/kevmo314/go-usb"
	"github.com/rs/zerolog"

	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
	"github.com/jeffwitz/libusb-uvc/pkg/quirks"
	"github.com/jeffwitz/libusb-uvc/pkg/transfers"
)

// UVCDevice is an exclusive session on one camera. It owns the USB handle
// until Close, which reattaches any detached kernel driver and resets the
// device so the kernel's view is restored.
type UVCDevice struct {
	handle *usb.DeviceHandle
	cfg    Config
	log    zerolog.Logger
	quirks *quirks.Registry

	mu     sync.Mutex
	info   *DeviceInfo
	stream *FrameStream
	closed atomic.Bool

	detached   []uint8
	needsReset bool

	vcMu     sync.Mutex
	vcClaims int

	controls    map[string]*ControlEntry
	controlList []*ControlEntry
}

// Open finds the camera matching cfg (VID/PID, optionally serial number)
// and opens an exclusive session on it.
func Open(cfg Config) (*UVCDevice, error) {
	cfg = cfg.Normalize()

	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Descriptor.VendorID != cfg.VendorID || dev.Descriptor.ProductID != cfg.ProductID {
			continue
		}
		handle, err := dev.Open()
		if err != nil {
			continue
		}
		if cfg.SerialNumber != "" {
			serial, err := handle.StringDescriptor(dev.Descriptor.SerialNumberIndex)
			if err != nil || serial != cfg.SerialNumber {
				handle.Close()
				continue
			}
		}
		return newDevice(handle, cfg)
	}
	return nil, ErrDeviceNotFound
}

// WrapSysDevice builds a session over an already-open usbfs file descriptor,
// as handed over by e.g. an Android USB manager.
func WrapSysDevice(fd int, cfg Config) (*UVCDevice, error) {
	cfg = cfg.Normalize()
	handle, err := usb.WrapSysDevice(fd)
	if err != nil {
		return nil, err
	}
	return newDevice(handle, cfg)
}

func newDevice(handle *usb.DeviceHandle, cfg Config) (*UVCDevice, error) {
	d := &UVCDevice{
		handle: handle,
		cfg:    cfg,
		log:    cfg.Logger,
	}
	registry, err := quirks.LoadDir(cfg.QuirksDir)
	if err != nil {
		handle.Close()
		return nil, err
	}
	d.quirks = registry
	if _, err := d.DeviceInfo(); err != nil {
		handle.Close()
		return nil, err
	}
	return d, nil
}

// ControlInterface is one parsed VC interface entity alongside the typed
// wrapper for the units we drive directly.
type ControlInterface struct {
	CameraTerminal *CameraTerminal
	ProcessingUnit *ProcessingUnit
	Descriptor     descriptors.ControlInterface
}

// DeviceInfo is the immutable descriptor tree materialised at open.
type DeviceInfo struct {
	BCDUVC              uint16
	VCInterfaceNumber   uint8
	ControlInterfaces   []*ControlInterface
	StreamingInterfaces []*transfers.StreamingInterface

	// interrupt IN endpoint of the VC interface, zero if absent
	vcInterruptEndpoint   uint8
	vcInterruptPacketSize uint16
}

// DeviceInfo parses the configuration descriptor once and caches the tree.
func (d *UVCDevice) DeviceInfo() (*DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.info != nil {
		return d.info, nil
	}

	config, err := d.handle.GetActiveConfigDescriptor()
	if err != nil {
		return nil, fmt.Errorf("reading config descriptor: %w", err)
	}

	var vcIface *usb.Interface
	for i := range config.Interfaces {
		alt := &config.Interfaces[i].AltSettings[0]
		if descriptors.ClassCode(alt.InterfaceClass) == descriptors.ClassCodeVideo &&
			descriptors.SubclassCode(alt.InterfaceSubClass) == descriptors.SubclassCodeVideoControl {
			vcIface = &config.Interfaces[i]
			break
		}
	}
	if vcIface == nil {
		return nil, fmt.Errorf("video control interface not found")
	}

	vcAlt := &vcIface.AltSettings[0]
	info := &DeviceInfo{VCInterfaceNumber: vcAlt.InterfaceNumber}

	for _, ep := range vcAlt.Endpoints {
		if ep.TransferType() == 0x03 && ep.IsInput() {
			info.vcInterruptEndpoint = ep.EndpointAddr
			info.vcInterruptPacketSize = ep.MaxPacketSize & 0x07ff
		}
	}

	units, err := descriptors.ParseControlInterface(vcAlt.Extra)
	if err != nil {
		return nil, err
	}
	for _, unit := range units {
		switch u := unit.(type) {
		case *descriptors.HeaderDescriptor:
			info.BCDUVC = u.UVC
			for _, ifnum := range u.VideoStreamingInterfaceIndexes {
				iface := config.Interface(ifnum)
				if iface == nil {
					continue
				}
				descs, err := descriptors.ParseStreamingInterface(iface.AltSettings[0].Extra)
				if err != nil {
					return nil, err
				}
				si := transfers.NewStreamingInterface(d.handle, iface, info.BCDUVC, descs, d.cfg.controlTimeout(), d.log)
				info.StreamingInterfaces = append(info.StreamingInterfaces, si)
			}
		case *descriptors.CameraTerminalDescriptor:
			camera := &CameraTerminal{dev: d, Descriptor: u}
			info.ControlInterfaces = append(info.ControlInterfaces, &ControlInterface{CameraTerminal: camera, Descriptor: u})
		case *descriptors.ProcessingUnitDescriptor:
			pu := &ProcessingUnit{dev: d, Descriptor: u}
			info.ControlInterfaces = append(info.ControlInterfaces, &ControlInterface{ProcessingUnit: pu, Descriptor: u})
		default:
			info.ControlInterfaces = append(info.ControlInterfaces, &ControlInterface{Descriptor: unit})
		}
	}
	if info.BCDUVC == 0 {
		return nil, fmt.Errorf("video control header descriptor not found")
	}

	d.info = info
	return info, nil
}

// claimVC detaches the kernel driver from the VC interface and claims it.
// The uvcvideo driver holds the interface by default on Linux and rejects
// user-space control transfers while bound. Claims are refcounted so a
// stream session and a concurrent control operation share one claim.
func (d *UVCDevice) claimVC() error {
	d.vcMu.Lock()
	defer d.vcMu.Unlock()
	if d.vcClaims > 0 {
		d.vcClaims++
		return nil
	}
	info := d.info
	if *d.cfg.AutoDetachVC {
		if err := d.handle.DetachKernelDriver(info.VCInterfaceNumber); err == nil {
			d.noteDetached(info.VCInterfaceNumber)
		}
	}
	if err := d.handle.ClaimInterface(info.VCInterfaceNumber); err != nil {
		return fmt.Errorf("claiming VC interface %d: %w", info.VCInterfaceNumber, err)
	}
	d.vcClaims = 1
	return nil
}

func (d *UVCDevice) releaseVC() {
	d.vcMu.Lock()
	defer d.vcMu.Unlock()
	if d.vcClaims == 0 {
		return
	}
	d.vcClaims--
	if d.vcClaims == 0 {
		d.handle.ReleaseInterface(d.info.VCInterfaceNumber)
	}
}

func (d *UVCDevice) noteDetached(ifnum uint8) {
	for _, n := range d.detached {
		if n == ifnum {
			return
		}
	}
	d.detached = append(d.detached, ifnum)
	d.needsReset = true
}

// claimStreaming claims a VS interface, detaching its kernel driver first.
func (d *UVCDevice) claimStreaming(si *transfers.StreamingInterface) error {
	ifnum := si.InterfaceNumber()
	if *d.cfg.AutoDetachVC {
		if err := d.handle.DetachKernelDriver(ifnum); err == nil {
			d.noteDetached(ifnum)
		}
	}
	if err := d.handle.ClaimInterface(ifnum); err != nil {
		return fmt.Errorf("claiming VS interface %d: %w", ifnum, err)
	}
	return nil
}

// Close stops any active stream, releases claimed interfaces, reattaches
// detached kernel drivers and resets the device if a driver was detached.
func (d *UVCDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.mu.Lock()
	stream := d.stream
	d.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}

	for _, ifnum := range d.detached {
		if err := d.handle.AttachKernelDriver(ifnum); err != nil {
			d.log.Debug().Uint8("interface", ifnum).Err(err).Msg("reattach failed")
		}
	}
	if d.needsReset {
		// restore the kernel's view of the device after driving it raw
		if err := d.handle.ResetDevice(); err != nil {
			d.log.Debug().Err(err).Msg("device reset failed")
		}
	}
	return d.handle.Close()
}
