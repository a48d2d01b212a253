package uvc

import (
	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
)

// ProcessingUnit wraps the processing unit with typed control access.
type ProcessingUnit struct {
	dev        *UVCDevice
	Descriptor *descriptors.ProcessingUnitDescriptor
}

// Get reads the current value of a typed processing unit control.
func (pu *ProcessingUnit) Get(ctrl descriptors.ProcessingUnitControlDescriptor) error {
	payload, err := ctrl.MarshalBinary()
	if err != nil {
		return err
	}
	buf, err := pu.dev.GetControlRaw(pu.Descriptor.UnitID, uint8(ctrl.Selector()), len(payload))
	if err != nil {
		return err
	}
	return ctrl.UnmarshalBinary(buf)
}

// Set writes a typed processing unit control.
func (pu *ProcessingUnit) Set(ctrl descriptors.ProcessingUnitControlDescriptor) error {
	payload, err := ctrl.MarshalBinary()
	if err != nil {
		return err
	}
	return pu.dev.SetControlRaw(pu.Descriptor.UnitID, uint8(ctrl.Selector()), payload)
}

func (pu *ProcessingUnit) GetBrightness() (int16, error) {
	ctrl := &descriptors.BrightnessControl{}
	if err := pu.Get(ctrl); err != nil {
		return 0, err
	}
	return ctrl.Brightness, nil
}

func (pu *ProcessingUnit) SetBrightness(value int16) error {
	return pu.Set(&descriptors.BrightnessControl{Brightness: value})
}

func (pu *ProcessingUnit) GetGain() (uint16, error) {
	ctrl := &descriptors.GainControl{}
	if err := pu.Get(ctrl); err != nil {
		return 0, err
	}
	return ctrl.Gain, nil
}

func (pu *ProcessingUnit) SetGain(value uint16) error {
	return pu.Set(&descriptors.GainControl{Gain: value})
}
