package uvc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"syscall"

	usb "github.com/kevmo314/go-usb"

	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
	"github.com/jeffwitz/libusb-uvc/pkg/quirks"
	"github.com/jeffwitz/libusb-uvc/pkg/requests"
)

// standardControl maps one advertised bmControls bit of a standard unit to
// its selector, canonical name and payload length.
type standardControl struct {
	bit      int
	selector uint8
	name     string
	length   int
	typ      quirks.ControlType
}

// Camera terminal controls, UVC spec 1.5, table 3-6.
var cameraTerminalControls = []standardControl{
	{0, 0x01, "Scanning Mode", 1, quirks.ControlTypeBool},
	{1, 0x02, "Auto-Exposure Mode", 1, quirks.ControlTypeEnum},
	{2, 0x03, "Auto-Exposure Priority", 1, quirks.ControlTypeBool},
	{3, 0x04, "Exposure Time, Absolute", 4, quirks.ControlTypeRange},
	{4, 0x05, "Exposure Time, Relative", 1, quirks.ControlTypeRange},
	{5, 0x06, "Focus, Absolute", 2, quirks.ControlTypeRange},
	{6, 0x07, "Focus, Relative", 2, quirks.ControlTypeRange},
	{7, 0x09, "Iris, Absolute", 2, quirks.ControlTypeRange},
	{8, 0x0A, "Iris, Relative", 1, quirks.ControlTypeRange},
	{9, 0x0B, "Zoom, Absolute", 2, quirks.ControlTypeRange},
	{10, 0x0C, "Zoom, Relative", 3, quirks.ControlTypeRaw},
	{11, 0x0D, "PanTilt, Absolute", 8, quirks.ControlTypeRaw},
	{12, 0x0E, "PanTilt, Relative", 4, quirks.ControlTypeRaw},
	{13, 0x0F, "Roll, Absolute", 2, quirks.ControlTypeRange},
	{14, 0x10, "Roll, Relative", 2, quirks.ControlTypeRaw},
	{17, 0x08, "Focus, Auto", 1, quirks.ControlTypeBool},
	{18, 0x11, "Privacy", 1, quirks.ControlTypeBool},
	{19, 0x12, "Focus, Simple", 1, quirks.ControlTypeEnum},
	{20, 0x13, "Window", 12, quirks.ControlTypeRaw},
	{21, 0x14, "Region of Interest", 10, quirks.ControlTypeRaw},
}

// Processing unit controls, UVC spec 1.5, table 3-8.
var processingUnitControls = []standardControl{
	{0, 0x02, "Brightness", 2, quirks.ControlTypeRange},
	{1, 0x03, "Contrast", 2, quirks.ControlTypeRange},
	{2, 0x06, "Hue", 2, quirks.ControlTypeRange},
	{3, 0x07, "Saturation", 2, quirks.ControlTypeRange},
	{4, 0x08, "Sharpness", 2, quirks.ControlTypeRange},
	{5, 0x09, "Gamma", 2, quirks.ControlTypeRange},
	{6, 0x0A, "White Balance Temperature", 2, quirks.ControlTypeRange},
	{7, 0x0C, "White Balance Component", 4, quirks.ControlTypeRaw},
	{8, 0x01, "Backlight Compensation", 2, quirks.ControlTypeRange},
	{9, 0x04, "Gain", 2, quirks.ControlTypeRange},
	{10, 0x05, "Power Line Frequency", 1, quirks.ControlTypeEnum},
	{11, 0x10, "Hue, Auto", 1, quirks.ControlTypeBool},
	{12, 0x0B, "White Balance Temperature, Auto", 1, quirks.ControlTypeBool},
	{13, 0x0D, "White Balance Component, Auto", 1, quirks.ControlTypeBool},
	{14, 0x0E, "Digital Multiplier", 2, quirks.ControlTypeRange},
	{15, 0x0F, "Digital Multiplier Limit", 2, quirks.ControlTypeRange},
	{16, 0x11, "Analog Video Standard", 1, quirks.ControlTypeEnum},
	{17, 0x12, "Analog Video Lock Status", 1, quirks.ControlTypeEnum},
	{18, 0x13, "Contrast, Auto", 1, quirks.ControlTypeBool},
}

// ControlEntry is one validated control: live GET_INFO capabilities merged
// with its range and, for extension units, quirk annotations.
type ControlEntry struct {
	UnitID   uint8
	Selector uint8
	Name     string
	Type     quirks.ControlType
	Notes    string

	// Info is the live GET_INFO capability byte.
	Info uint8

	Length int
	Signed bool

	Min, Max, Res, Def int64
	HasRange           bool

	RawMin, RawMax, RawRes, RawDef []byte
}

func (e *ControlEntry) Readable() bool { return e.Info&requests.InfoSupportsGet != 0 }
func (e *ControlEntry) Writable() bool { return e.Info&requests.InfoSupportsSet != 0 }

func bitSet(bitmap []byte, bit int) bool {
	if bit/8 >= len(bitmap) {
		return false
	}
	return bitmap[bit/8]&(1<<(bit%8)) != 0
}

// vcGet issues a class-specific GET request against one unit selector.
func (d *UVCDevice) vcGet(unitID, selector uint8, request requests.RequestCode, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := d.handle.ControlTransfer(
		uint8(requests.RequestTypeVideoInterfaceGetRequest),
		uint8(request),
		uint16(selector)<<8,
		uint16(unitID)<<8|uint16(d.info.VCInterfaceNumber),
		buf,
		d.cfg.controlTimeout(),
	)
	if err != nil {
		return nil, d.controlError(unitID, selector, err)
	}
	if n < length {
		return buf[:n], &ControlError{Kind: ControlInvalidLength, Unit: unitID, Selector: selector}
	}
	return buf, nil
}

// vcSet issues SET_CUR against one unit selector.
func (d *UVCDevice) vcSet(unitID, selector uint8, payload []byte) error {
	_, err := d.handle.ControlTransfer(
		uint8(requests.RequestTypeVideoInterfaceSetRequest),
		uint8(requests.RequestCodeSetCur),
		uint16(selector)<<8,
		uint16(unitID)<<8|uint16(d.info.VCInterfaceNumber),
		payload,
		d.cfg.controlTimeout(),
	)
	if err != nil {
		return d.controlError(unitID, selector, err)
	}
	return nil
}

func (d *UVCDevice) controlError(unitID, selector uint8, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EPIPE:
			return &ControlError{Kind: ControlStall, Unit: unitID, Selector: selector, Err: err}
		case syscall.ETIMEDOUT:
			return &ControlError{Kind: ControlTimeout, Unit: unitID, Selector: selector, Err: err}
		}
	}
	if errors.Is(err, usb.ErrTimeout) {
		return &ControlError{Kind: ControlTimeout, Unit: unitID, Selector: selector, Err: err}
	}
	if errors.Is(err, usb.ErrPipe) {
		return &ControlError{Kind: ControlStall, Unit: unitID, Selector: selector, Err: err}
	}
	return err
}

// xuControlLength asks an extension unit for a selector's payload length.
func (d *UVCDevice) xuControlLength(unitID, selector uint8) int {
	buf, err := d.vcGet(unitID, selector, requests.RequestCodeGetLen, 2)
	if err != nil || len(buf) < 2 {
		return 0
	}
	return int(binary.LittleEndian.Uint16(buf))
}

// EnumerateControls validates every advertised control bit with GET_INFO,
// reads ranges and merges quirk annotations. The result is cached; firmware
// that lies about bmControls (GET_INFO stalls on an advertised bit) has the
// control dropped from the table.
func (d *UVCDevice) EnumerateControls() ([]*ControlEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.controlList != nil {
		return d.controlList, nil
	}
	if err := d.claimVC(); err != nil {
		return nil, err
	}
	defer d.releaseVC()

	d.controls = make(map[string]*ControlEntry)
	for _, ci := range d.info.ControlInterfaces {
		switch u := ci.Descriptor.(type) {
		case *descriptors.CameraTerminalDescriptor:
			d.enumerateStandard(u.TerminalID, u.ControlsBitmask, cameraTerminalControls)
		case *descriptors.ProcessingUnitDescriptor:
			d.enumerateStandard(u.UnitID, u.ControlsBitmask, processingUnitControls)
		case *descriptors.ExtensionUnitDescriptor:
			d.enumerateExtension(u)
		}
	}
	return d.controlList, nil
}

func (d *UVCDevice) enumerateStandard(unitID uint8, bitmap []byte, table []standardControl) {
	for _, ctrl := range table {
		if !bitSet(bitmap, ctrl.bit) {
			continue
		}
		entry := &ControlEntry{
			UnitID:   unitID,
			Selector: ctrl.selector,
			Name:     ctrl.name,
			Type:     ctrl.typ,
			Length:   ctrl.length,
		}
		if !d.probeControl(entry) {
			continue
		}
		d.addEntry(entry)
	}
}

func (d *UVCDevice) enumerateExtension(xu *descriptors.ExtensionUnitDescriptor) {
	doc, _ := d.quirks.Unit(xu.GUIDExtensionCode)
	for bit := 0; bit < len(xu.ControlsBitmask)*8; bit++ {
		if !bitSet(xu.ControlsBitmask, bit) {
			continue
		}
		selector := uint8(bit + 1)
		entry := &ControlEntry{
			UnitID:   xu.UnitID,
			Selector: selector,
			Name:     fmt.Sprintf("XU %s Control 0x%02x", xu.GUIDExtensionCode, selector),
			Type:     quirks.ControlTypeRaw,
			Length:   d.xuControlLength(xu.UnitID, selector),
		}
		if doc != nil && doc.Name != "" {
			entry.Name = fmt.Sprintf("%s Control 0x%02x", doc.Name, selector)
		}
		if q, ok := d.quirks.Lookup(xu.GUIDExtensionCode, int(selector)); ok {
			if q.Name != "" {
				entry.Name = q.Name
			}
			if q.Type != "" {
				entry.Type = q.Type
			}
			entry.Notes = q.Notes
			if entry.Length == 0 && q.PayloadLen != nil {
				entry.Length = *q.PayloadLen
			}
		}
		if entry.Length == 0 {
			continue
		}
		if !d.probeControl(entry) {
			continue
		}
		if q, ok := d.quirks.Lookup(xu.GUIDExtensionCode, int(selector)); ok && q.GetInfoExpect != nil {
			// validation only, never overwrites the live byte
			if uint8(*q.GetInfoExpect) != entry.Info {
				d.log.Warn().
					Str("control", entry.Name).
					Uint8("info", entry.Info).
					Int("expected", *q.GetInfoExpect).
					Msg("GET_INFO differs from quirk expectation")
			}
		}
		d.addEntry(entry)
	}
}

// probeControl validates one control with GET_INFO and, for readable
// numeric controls, loads its range. A stalled GET_INFO means the firmware
// advertises a control it does not implement.
func (d *UVCDevice) probeControl(entry *ControlEntry) bool {
	info, err := d.vcGet(entry.UnitID, entry.Selector, requests.RequestCodeGetInfo, 1)
	if err != nil {
		var ce *ControlError
		if errors.As(err, &ce) && ce.Kind == ControlStall {
			d.log.Debug().Str("control", entry.Name).Msg("advertised control stalls GET_INFO, dropping")
			return false
		}
		return false
	}
	entry.Info = info[0]

	if entry.Length > 0 && entry.Length <= 4 && entry.Readable() {
		entry.RawMin, _ = d.vcGetOptional(entry, requests.RequestCodeGetMin)
		entry.RawMax, _ = d.vcGetOptional(entry, requests.RequestCodeGetMax)
		entry.RawRes, _ = d.vcGetOptional(entry, requests.RequestCodeGetRes)
		entry.RawDef, _ = d.vcGetOptional(entry, requests.RequestCodeGetDef)
		if entry.RawMin != nil && entry.RawMax != nil {
			entry.Signed = leUint(entry.RawMin) > leUint(entry.RawMax)
			entry.Min = leInt(entry.RawMin, entry.Signed)
			entry.Max = leInt(entry.RawMax, entry.Signed)
			if entry.RawRes != nil {
				entry.Res = leInt(entry.RawRes, false)
			}
			if entry.RawDef != nil {
				entry.Def = leInt(entry.RawDef, entry.Signed)
			}
			entry.HasRange = true
		}
	}
	return true
}

// vcGetOptional absorbs stalls: GET_MIN/MAX/RES/DEF are optional even on
// controls that answer GET_INFO.
func (d *UVCDevice) vcGetOptional(entry *ControlEntry, request requests.RequestCode) ([]byte, error) {
	buf, err := d.vcGet(entry.UnitID, entry.Selector, request, entry.Length)
	if err != nil {
		var ce *ControlError
		if errors.As(err, &ce) && ce.Kind == ControlStall {
			return nil, nil
		}
		return nil, err
	}
	return buf, nil
}

func (d *UVCDevice) addEntry(entry *ControlEntry) {
	d.controlList = append(d.controlList, entry)
	if _, ok := d.controls[strings.ToLower(entry.Name)]; !ok {
		d.controls[strings.ToLower(entry.Name)] = entry
	}
}

func leUint(buf []byte) uint64 {
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func leInt(buf []byte, signed bool) int64 {
	v := leUint(buf)
	if signed && len(buf) > 0 && len(buf) <= 8 {
		shift := 64 - len(buf)*8
		return int64(v<<shift) >> shift
	}
	return int64(v)
}

func lePut(buf []byte, v int64) {
	for i := range buf {
		buf[i] = byte(v)
		v >>= 8
	}
}

// ResolveControl finds a control by its human name (case-insensitive) as
// merged from the standard tables and quirks.
func (d *UVCDevice) ResolveControl(name string) (*ControlEntry, error) {
	if _, err := d.EnumerateControls(); err != nil {
		return nil, err
	}
	entry, ok := d.controls[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown control %q", name)
	}
	return entry, nil
}

// GetControl reads a control's current value. The raw payload is decoded as
// a little-endian integer using the signedness inferred from its range.
func (d *UVCDevice) GetControl(name string) (int64, error) {
	entry, err := d.ResolveControl(name)
	if err != nil {
		return 0, err
	}
	if !entry.Readable() {
		return 0, &ControlError{Kind: ControlNotSupported, Unit: entry.UnitID, Selector: entry.Selector}
	}
	if err := d.claimVC(); err != nil {
		return 0, err
	}
	defer d.releaseVC()
	buf, err := d.vcGet(entry.UnitID, entry.Selector, requests.RequestCodeGetCur, entry.Length)
	if err != nil {
		return 0, err
	}
	return leInt(buf, entry.Signed), nil
}

// SetControl writes a control value. The device clips out-of-range values
// to its advertised bounds and rounds to its resolution; read the control
// back to observe the effective value.
func (d *UVCDevice) SetControl(name string, value int64) error {
	entry, err := d.ResolveControl(name)
	if err != nil {
		return err
	}
	if !entry.Writable() {
		return &ControlError{Kind: ControlNotSupported, Unit: entry.UnitID, Selector: entry.Selector}
	}
	buf := make([]byte, entry.Length)
	lePut(buf, value)
	if err := d.claimVC(); err != nil {
		return err
	}
	defer d.releaseVC()
	return d.vcSet(entry.UnitID, entry.Selector, buf)
}

// GetControlRaw and SetControlRaw address a control by (unit, selector) for
// payloads that are not plain integers.
func (d *UVCDevice) GetControlRaw(unitID, selector uint8, length int) ([]byte, error) {
	if err := d.claimVC(); err != nil {
		return nil, err
	}
	defer d.releaseVC()
	return d.vcGet(unitID, selector, requests.RequestCodeGetCur, length)
}

func (d *UVCDevice) SetControlRaw(unitID, selector uint8, payload []byte) error {
	if err := d.claimVC(); err != nil {
		return err
	}
	defer d.releaseVC()
	return d.vcSet(unitID, selector, payload)
}
