package descriptors

import (
	"encoding"
	"encoding/binary"
	"io"
)

type CameraTerminalControlSelector int

const (
	CameraTerminalControlSelectorUndefined                   CameraTerminalControlSelector = 0x00
	CameraTerminalControlSelectorScanningModeControl         CameraTerminalControlSelector = 0x01
	CameraTerminalControlSelectorAutoExposureModeControl     CameraTerminalControlSelector = 0x02
	CameraTerminalControlSelectorAutoExposurePriorityControl CameraTerminalControlSelector = 0x03
	CameraTerminalControlSelectorExposureTimeAbsoluteControl CameraTerminalControlSelector = 0x04
	CameraTerminalControlSelectorExposureTimeRelativeControl CameraTerminalControlSelector = 0x05
	CameraTerminalControlSelectorFocusAbsoluteControl        CameraTerminalControlSelector = 0x06
	CameraTerminalControlSelectorFocusRelativeControl        CameraTerminalControlSelector = 0x07
	CameraTerminalControlSelectorFocusAutoControl            CameraTerminalControlSelector = 0x08
	CameraTerminalControlSelectorIrisAbsoluteControl         CameraTerminalControlSelector = 0x09
	CameraTerminalControlSelectorIrisRelativeControl         CameraTerminalControlSelector = 0x0A
	CameraTerminalControlSelectorZoomAbsoluteControl         CameraTerminalControlSelector = 0x0B
	CameraTerminalControlSelectorZoomRelativeControl         CameraTerminalControlSelector = 0x0C
	CameraTerminalControlSelectorPanTiltAbsoluteControl      CameraTerminalControlSelector = 0x0D
	CameraTerminalControlSelectorPanTiltRelativeControl      CameraTerminalControlSelector = 0x0E
	CameraTerminalControlSelectorRollAbsoluteControl         CameraTerminalControlSelector = 0x0F
	CameraTerminalControlSelectorRollRelativeControl         CameraTerminalControlSelector = 0x10
	CameraTerminalControlSelectorPrivacyControl              CameraTerminalControlSelector = 0x11
	CameraTerminalControlSelectorFocusSimpleControl          CameraTerminalControlSelector = 0x12
	CameraTerminalControlSelectorWindowControl               CameraTerminalControlSelector = 0x13
	CameraTerminalControlSelectorRegionOfInterestControl     CameraTerminalControlSelector = 0x14
)

type ProcessingUnitControlSelector int

const (
	ProcessingUnitControlSelectorUndefined           ProcessingUnitControlSelector = 0x00
	ProcessingUnitBacklightCompensationControl       ProcessingUnitControlSelector = 0x01
	ProcessingUnitBrightnessControl                  ProcessingUnitControlSelector = 0x02
	ProcessingUnitContrastControl                    ProcessingUnitControlSelector = 0x03
	ProcessingUnitGainControl                        ProcessingUnitControlSelector = 0x04
	ProcessingUnitPowerLineFrequencyControl          ProcessingUnitControlSelector = 0x05
	ProcessingUnitHueControl                         ProcessingUnitControlSelector = 0x06
	ProcessingUnitSaturationControl                  ProcessingUnitControlSelector = 0x07
	ProcessingUnitSharpnessControl                   ProcessingUnitControlSelector = 0x08
	ProcessingUnitGammaControl                       ProcessingUnitControlSelector = 0x09
	ProcessingUnitWhiteBalanceTemperatureControl     ProcessingUnitControlSelector = 0x0A
	ProcessingUnitWhiteBalanceTemperatureAutoControl ProcessingUnitControlSelector = 0x0B
	ProcessingUnitWhiteBalanceComponentControl       ProcessingUnitControlSelector = 0x0C
	ProcessingUnitWhiteBalanceComponentAutoControl   ProcessingUnitControlSelector = 0x0D
	ProcessingUnitDigitalMultiplierControl           ProcessingUnitControlSelector = 0x0E
	ProcessingUnitDigitalMultiplierLimitControl      ProcessingUnitControlSelector = 0x0F
	ProcessingUnitHueAutoControl                     ProcessingUnitControlSelector = 0x10
	ProcessingUnitAnalogVideoStandardControl         ProcessingUnitControlSelector = 0x11
	ProcessingUnitAnalogVideoLockStatusControl       ProcessingUnitControlSelector = 0x12
	ProcessingUnitContrastAutoControl                ProcessingUnitControlSelector = 0x13
)

type AutoExposureMode int

const (
	AutoExposureModeManual           AutoExposureMode = 1
	AutoExposureModeAuto             AutoExposureMode = 2
	AutoExposureModeShutterPriority  AutoExposureMode = 4
	AutoExposureModeAperturePriority AutoExposureMode = 8
)

type AutoExposurePriority int

const (
	AutoExposurePriorityConstant AutoExposurePriority = 0
	AutoExposurePriorityDynamic  AutoExposurePriority = 1
)

// CameraTerminalControlDescriptor is implemented by the typed payload codecs
// of camera terminal controls.
type CameraTerminalControlDescriptor interface {
	Selector() CameraTerminalControlSelector
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// ProcessingUnitControlDescriptor is the processing unit counterpart.
type ProcessingUnitControlDescriptor interface {
	Selector() ProcessingUnitControlSelector
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Control Request for Auto-Exposure Mode as defined in UVC spec 1.5, 4.2.2.1.2
type AutoExposureModeControl struct {
	Mode AutoExposureMode
}

func (aemc *AutoExposureModeControl) Selector() CameraTerminalControlSelector {
	return CameraTerminalControlSelectorAutoExposureModeControl
}

func (aemc *AutoExposureModeControl) MarshalBinary() ([]byte, error) {
	return []byte{byte(aemc.Mode)}, nil
}

func (aemc *AutoExposureModeControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 1 {
		return io.ErrShortBuffer
	}
	aemc.Mode = AutoExposureMode(buf[0])
	return nil
}

// Control Request for Auto-Exposure Priority as defined in UVC spec 1.5, 4.2.2.1.3
type AutoExposurePriorityControl struct {
	Priority AutoExposurePriority
}

func (aepc *AutoExposurePriorityControl) Selector() CameraTerminalControlSelector {
	return CameraTerminalControlSelectorAutoExposurePriorityControl
}

func (aepc *AutoExposurePriorityControl) MarshalBinary() ([]byte, error) {
	return []byte{byte(aepc.Priority)}, nil
}

func (aepc *AutoExposurePriorityControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 1 {
		return io.ErrShortBuffer
	}
	aepc.Priority = AutoExposurePriority(buf[0])
	return nil
}

// Control Request for Exposure Time (Absolute) as defined in UVC spec 1.5, 4.2.2.1.4
type ExposureTimeAbsoluteControl struct {
	Time uint32
}

func (etac *ExposureTimeAbsoluteControl) Selector() CameraTerminalControlSelector {
	return CameraTerminalControlSelectorExposureTimeAbsoluteControl
}

func (etac *ExposureTimeAbsoluteControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, etac.Time)
	return buf, nil
}

func (etac *ExposureTimeAbsoluteControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 4 {
		return io.ErrShortBuffer
	}
	etac.Time = binary.LittleEndian.Uint32(buf)
	return nil
}

// Control Request for Focus (Absolute) as defined in UVC spec 1.5, 4.2.2.1.6
type FocusAbsoluteControl struct {
	Focus uint16
}

func (fac *FocusAbsoluteControl) Selector() CameraTerminalControlSelector {
	return CameraTerminalControlSelectorFocusAbsoluteControl
}

func (fac *FocusAbsoluteControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, fac.Focus)
	return buf, nil
}

func (fac *FocusAbsoluteControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	fac.Focus = binary.LittleEndian.Uint16(buf)
	return nil
}

// Control Request for Focus, Auto as defined in UVC spec 1.5, 4.2.2.1.9
type FocusAutoControl struct {
	FocusAuto bool
}

func (fac *FocusAutoControl) Selector() CameraTerminalControlSelector {
	return CameraTerminalControlSelectorFocusAutoControl
}

func (fac *FocusAutoControl) MarshalBinary() ([]byte, error) {
	if fac.FocusAuto {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (fac *FocusAutoControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 1 {
		return io.ErrShortBuffer
	}
	fac.FocusAuto = buf[0] == 1
	return nil
}

// Control Request for Zoom (Absolute) as defined in UVC spec 1.5, 4.2.2.1.11
type ZoomAbsoluteControl struct {
	ObjectiveFocalLength uint16
}

func (zac *ZoomAbsoluteControl) Selector() CameraTerminalControlSelector {
	return CameraTerminalControlSelectorZoomAbsoluteControl
}

func (zac *ZoomAbsoluteControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, zac.ObjectiveFocalLength)
	return buf, nil
}

func (zac *ZoomAbsoluteControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	zac.ObjectiveFocalLength = binary.LittleEndian.Uint16(buf)
	return nil
}

// Control Request for Brightness as defined in UVC spec 1.5, 4.2.2.3.2
type BrightnessControl struct {
	Brightness int16
}

func (bc *BrightnessControl) Selector() ProcessingUnitControlSelector {
	return ProcessingUnitBrightnessControl
}

func (bc *BrightnessControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(bc.Brightness))
	return buf, nil
}

func (bc *BrightnessControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	bc.Brightness = int16(binary.LittleEndian.Uint16(buf))
	return nil
}

// Control Request for Contrast as defined in UVC spec 1.5, 4.2.2.3.3
type ContrastControl struct {
	Contrast uint16
}

func (cc *ContrastControl) Selector() ProcessingUnitControlSelector {
	return ProcessingUnitContrastControl
}

func (cc *ContrastControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, cc.Contrast)
	return buf, nil
}

func (cc *ContrastControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	cc.Contrast = binary.LittleEndian.Uint16(buf)
	return nil
}

// Control Request for Gain as defined in UVC spec 1.5, 4.2.2.3.4
type GainControl struct {
	Gain uint16
}

func (gc *GainControl) Selector() ProcessingUnitControlSelector {
	return ProcessingUnitGainControl
}

func (gc *GainControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, gc.Gain)
	return buf, nil
}

func (gc *GainControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	gc.Gain = binary.LittleEndian.Uint16(buf)
	return nil
}

// Control Request for White Balance Temperature as defined in UVC spec 1.5, 4.2.2.3.9
type WhiteBalanceTemperatureControl struct {
	Temperature uint16
}

func (wbtc *WhiteBalanceTemperatureControl) Selector() ProcessingUnitControlSelector {
	return ProcessingUnitWhiteBalanceTemperatureControl
}

func (wbtc *WhiteBalanceTemperatureControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, wbtc.Temperature)
	return buf, nil
}

func (wbtc *WhiteBalanceTemperatureControl) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	wbtc.Temperature = binary.LittleEndian.Uint16(buf)
	return nil
}
