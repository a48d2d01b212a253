package uvc

import (
	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
)

// CameraTerminal wraps the input camera terminal with typed control access.
type CameraTerminal struct {
	dev        *UVCDevice
	Descriptor *descriptors.CameraTerminalDescriptor
}

// Get reads the current value of a typed camera terminal control.
func (ct *CameraTerminal) Get(ctrl descriptors.CameraTerminalControlDescriptor) error {
	payload, err := ctrl.MarshalBinary()
	if err != nil {
		return err
	}
	buf, err := ct.dev.GetControlRaw(ct.Descriptor.TerminalID, uint8(ctrl.Selector()), len(payload))
	if err != nil {
		return err
	}
	return ctrl.UnmarshalBinary(buf)
}

// Set writes a typed camera terminal control.
func (ct *CameraTerminal) Set(ctrl descriptors.CameraTerminalControlDescriptor) error {
	payload, err := ctrl.MarshalBinary()
	if err != nil {
		return err
	}
	return ct.dev.SetControlRaw(ct.Descriptor.TerminalID, uint8(ctrl.Selector()), payload)
}

func (ct *CameraTerminal) GetAutoFocus() (bool, error) {
	ctrl := &descriptors.FocusAutoControl{}
	if err := ct.Get(ctrl); err != nil {
		return false, err
	}
	return ctrl.FocusAuto, nil
}

func (ct *CameraTerminal) SetAutoFocus(on bool) error {
	return ct.Set(&descriptors.FocusAutoControl{FocusAuto: on})
}

func (ct *CameraTerminal) GetExposureTime() (uint32, error) {
	ctrl := &descriptors.ExposureTimeAbsoluteControl{}
	if err := ct.Get(ctrl); err != nil {
		return 0, err
	}
	return ctrl.Time, nil
}

// SetExposureTime sets the absolute exposure in 100 µs units. Most cameras
// require manual auto-exposure mode first.
func (ct *CameraTerminal) SetExposureTime(time100us uint32) error {
	return ct.Set(&descriptors.ExposureTimeAbsoluteControl{Time: time100us})
}

func (ct *CameraTerminal) SetAutoExposureMode(mode descriptors.AutoExposureMode) error {
	return ct.Set(&descriptors.AutoExposureModeControl{Mode: mode})
}
