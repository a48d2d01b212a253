package descriptors

import (
	"testing"
	"time"
)

func TestVideoProbeCommitControl_RoundTrip(t *testing.T) {
	original := &VideoProbeCommitControl{
		HintBitmask:            0x0001,
		FormatIndex:            1,
		FrameIndex:             2,
		FrameInterval:          33333300 * time.Nanosecond, // ~30fps
		KeyFrameRate:           30,
		PFrameRate:             1,
		CompQuality:            5000,
		CompWindowSize:         1000,
		Delay:                  100,
		MaxVideoFrameSize:      1920 * 1080 * 2,
		MaxPayloadTransferSize: 3072,
		ClockFrequency:         48000000,
		FramingInfoBitmask:     0x01,
		PreferedVersion:        0x01,
		MinVersion:             0x00,
		MaxVersion:             0x01,
	}

	data, err := original.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	decoded := &VideoProbeCommitControl{}
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}

	if decoded.HintBitmask != original.HintBitmask {
		t.Errorf("HintBitmask = %d, want %d", decoded.HintBitmask, original.HintBitmask)
	}
	if decoded.FormatIndex != original.FormatIndex {
		t.Errorf("FormatIndex = %d, want %d", decoded.FormatIndex, original.FormatIndex)
	}
	if decoded.FrameIndex != original.FrameIndex {
		t.Errorf("FrameIndex = %d, want %d", decoded.FrameIndex, original.FrameIndex)
	}
	if decoded.FrameInterval != original.FrameInterval {
		t.Errorf("FrameInterval = %v, want %v", decoded.FrameInterval, original.FrameInterval)
	}
	if decoded.MaxVideoFrameSize != original.MaxVideoFrameSize {
		t.Errorf("MaxVideoFrameSize = %d, want %d", decoded.MaxVideoFrameSize, original.MaxVideoFrameSize)
	}
	if decoded.MaxPayloadTransferSize != original.MaxPayloadTransferSize {
		t.Errorf("MaxPayloadTransferSize = %d, want %d", decoded.MaxPayloadTransferSize, original.MaxPayloadTransferSize)
	}
	if decoded.ClockFrequency != original.ClockFrequency {
		t.Errorf("ClockFrequency = %d, want %d", decoded.ClockFrequency, original.ClockFrequency)
	}
}

func TestVideoProbeCommitControl_UnmarshalBinary_UVC10(t *testing.T) {
	// UVC 1.0 uses the 26 byte layout
	buf := make([]byte, 26)
	buf[2] = 2                                                  // FormatIndex
	buf[3] = 1                                                  // FrameIndex
	buf[4], buf[5], buf[6], buf[7] = 0x15, 0x16, 0x05, 0x00     // 333333 x 100ns = 30fps
	buf[18], buf[19], buf[20], buf[21] = 0x00, 0x00, 0x10, 0x00 // MaxVideoFrameSize = 1048576
	buf[22], buf[23] = 0xF4, 0x0B                               // MaxPayloadTransferSize = 3060

	vpcc := &VideoProbeCommitControl{}
	if err := vpcc.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}

	if vpcc.FormatIndex != 2 {
		t.Errorf("FormatIndex = %d, want 2", vpcc.FormatIndex)
	}
	if vpcc.FrameIndex != 1 {
		t.Errorf("FrameIndex = %d, want 1", vpcc.FrameIndex)
	}
	if got := vpcc.FrameInterval100ns(); got != 333333 {
		t.Errorf("FrameInterval100ns = %d, want 333333", got)
	}
	if vpcc.MaxVideoFrameSize != 1048576 {
		t.Errorf("MaxVideoFrameSize = %d, want 1048576", vpcc.MaxVideoFrameSize)
	}
	if vpcc.MaxPayloadTransferSize != 3060 {
		t.Errorf("MaxPayloadTransferSize = %d, want 3060", vpcc.MaxPayloadTransferSize)
	}
}

func TestProbeControlSizeForVersion(t *testing.T) {
	cases := []struct {
		bcdUVC uint16
		want   int
	}{
		{0x0100, 26},
		{0x0110, 34},
		{0x0150, 48},
		{0x0160, 48},
	}
	for _, c := range cases {
		if got := ProbeControlSizeForVersion(c.bcdUVC); got != c.want {
			t.Errorf("ProbeControlSizeForVersion(0x%04x) = %d, want %d", c.bcdUVC, got, c.want)
		}
	}
}

func TestVideoProbeCommitControl_MarshalInto26(t *testing.T) {
	vpcc := &VideoProbeCommitControl{
		HintBitmask:   0x0001,
		FormatIndex:   2,
		FrameIndex:    1,
		FrameInterval: 333333 * 100 * time.Nanosecond,
	}
	buf := make([]byte, 26)
	if err := vpcc.MarshalInto(buf); err != nil {
		t.Fatalf("MarshalInto failed: %v", err)
	}
	if buf[0] != 0x01 || buf[1] != 0x00 {
		t.Errorf("bmHint = %02x%02x, want 0100", buf[0], buf[1])
	}
	if buf[2] != 2 || buf[3] != 1 {
		t.Errorf("indexes = %d/%d, want 2/1", buf[2], buf[3])
	}
	if got := uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24; got != 333333 {
		t.Errorf("dwFrameInterval = %d, want 333333", got)
	}
}

func TestExposureTimeAbsoluteControl_RoundTrip(t *testing.T) {
	ctrl := &ExposureTimeAbsoluteControl{Time: 200}
	data, err := ctrl.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	decoded := &ExposureTimeAbsoluteControl{}
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if decoded.Time != 200 {
		t.Errorf("Time = %d, want 200", decoded.Time)
	}
}
