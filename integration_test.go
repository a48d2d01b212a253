//go:build integration

package uvc

import (
	"testing"
	"time"

	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
)

// These tests need a real camera on the bus (VID 0x0408, PID 0x5473). Run
// with:
//
//	go test -tags integration .
func openTestDevice(t *testing.T) *UVCDevice {
	t.Helper()
	dev, err := Open(Config{
		VendorID:  0x0408,
		ProductID: 0x5473,
		Width:     1920,
		Height:    1080,
		FPS:       30,
		Codec:     CodecMJPEG,
	})
	if err != nil {
		t.Skipf("no test camera available: %v", err)
	}
	return dev
}

func TestDeviceInfo(t *testing.T) {
	dev := openTestDevice(t)
	defer dev.Close()

	info, err := dev.DeviceInfo()
	if err != nil {
		t.Fatal(err)
	}
	if len(info.StreamingInterfaces) == 0 {
		t.Fatal("no streaming interfaces")
	}

	foundMJPEG := false
	for _, si := range info.StreamingInterfaces {
		for _, group := range si.FormatGroups() {
			if group.Format.FourCC() != "MJPG" {
				continue
			}
			foundMJPEG = true
			for _, frame := range group.Frames {
				w, h := frame.Size()
				if w == 1920 && h == 1080 {
					if got := frame.DefaultInterval(); got != 333333*100*time.Nanosecond {
						t.Errorf("default interval = %v, want 33.3333ms", got)
					}
				}
			}
		}
	}
	if !foundMJPEG {
		t.Error("no MJPEG format advertised")
	}
}

func TestStreamTenFrames(t *testing.T) {
	dev := openTestDevice(t)
	defer dev.Close()

	stream, err := dev.ConfigureStream()
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Stop()

	for i := 0; i < 10; i++ {
		frame, err := stream.NextFrame(5 * time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if frame.Sequence != uint64(i) {
			t.Errorf("frame %d has sequence %d", i, frame.Sequence)
		}
		payload := frame.Payload
		if len(payload) < 4 || payload[0] != 0xFF || payload[1] != 0xD8 {
			t.Errorf("frame %d does not start with SOI", i)
		}
		if payload[len(payload)-2] != 0xFF || payload[len(payload)-1] != 0xD9 {
			t.Errorf("frame %d does not end with EOI", i)
		}
	}
}

func TestStopAndReconfigure(t *testing.T) {
	dev := openTestDevice(t)
	defer dev.Close()

	stream, err := dev.ConfigureStream()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.NextFrame(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	if err := stream.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, err := stream.NextFrame(time.Second); err != ErrStopped {
		t.Fatalf("NextFrame after stop = %v, want ErrStopped", err)
	}

	// a fresh configure restarts the sequence at zero
	stream, err = dev.ConfigureStream()
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Stop()
	frame, err := stream.NextFrame(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Sequence != 0 {
		t.Errorf("sequence after reconfigure = %d, want 0", frame.Sequence)
	}
}

func TestExposureRoundTrip(t *testing.T) {
	dev := openTestDevice(t)
	defer dev.Close()

	for _, ci := range dev.info.ControlInterfaces {
		if ci.CameraTerminal == nil {
			continue
		}
		if err := ci.CameraTerminal.SetAutoExposureMode(descriptors.AutoExposureModeManual); err != nil {
			t.Skipf("manual exposure unsupported: %v", err)
		}
	}

	if err := dev.SetControl("Exposure Time, Absolute", 200); err != nil {
		t.Skipf("exposure control unsupported: %v", err)
	}
	got, err := dev.GetControl("Exposure Time, Absolute")
	if err != nil {
		t.Fatal(err)
	}
	entry, err := dev.ResolveControl("Exposure Time, Absolute")
	if err != nil {
		t.Fatal(err)
	}
	want := int64(200)
	if entry.HasRange && entry.Res > 0 {
		want = (200 / entry.Res) * entry.Res
	}
	if got != want {
		t.Errorf("exposure = %d, want %d", got, want)
	}
}
