package descriptors

import (
	"errors"
	"testing"
	"time"
)

var yuy2GUID = []byte{0x59, 0x55, 0x59, 0x32, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }

func block(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	out[0] = byte(len(out))
	return out
}

func synthVSExtra() []byte {
	var buf []byte
	// input header, 2 formats
	buf = append(buf, block(
		[]byte{0, 0x24, 0x01, 2}, le16(0), []byte{0x81, 0x00, 0x02, 0x00, 0x00, 0x00, 1, 0x00, 0x00},
	)...)
	// MJPEG format index 1 with one 1920x1080 frame
	buf = append(buf, block([]byte{0, 0x24, 0x06, 1, 1, 0x01, 1, 0, 0, 0, 0})...)
	buf = append(buf, block(
		[]byte{0, 0x24, 0x07, 1, 0x01}, le16(1920), le16(1080),
		le32(10_000_000), le32(40_000_000), le32(1920*1080*2), le32(333333),
		[]byte{1}, le32(333333),
	)...)
	// still image frame bound to the MJPEG format
	buf = append(buf, block([]byte{0, 0x24, 0x03, 0x00, 1}, le16(640), le16(480), []byte{1, 0x05})...)
	// uncompressed format index 2 with a continuous-interval frame
	buf = append(buf, block([]byte{0, 0x24, 0x04, 2, 1}, yuy2GUID, []byte{16, 1, 4, 3, 0, 0})...)
	buf = append(buf, block(
		[]byte{0, 0x24, 0x05, 1, 0x00}, le16(640), le16(480),
		le32(10_000_000), le32(40_000_000), le32(640*480*2), le32(333333),
		[]byte{0}, le32(333333), le32(666666), le32(333333),
	)...)
	// unknown but well-formed subtype must be skipped
	buf = append(buf, block([]byte{0, 0x24, 0x1B, 0xAA})...)
	return buf
}

func TestParseStreamingInterface(t *testing.T) {
	descs, err := ParseStreamingInterface(synthVSExtra())
	if err != nil {
		t.Fatalf("ParseStreamingInterface failed: %v", err)
	}

	groups := GroupFormats(descs)
	if len(groups) != 2 {
		t.Fatalf("got %d format groups, want 2", len(groups))
	}

	// every format index must be its 1-based position in the interface
	for i, group := range groups {
		if got := group.Format.Index(); int(got) != i+1 {
			t.Errorf("format %d has index %d, want %d", i, got, i+1)
		}
	}

	mjpeg := groups[0]
	if mjpeg.Format.FourCC() != "MJPG" {
		t.Errorf("FourCC = %q, want MJPG", mjpeg.Format.FourCC())
	}
	if len(mjpeg.Frames) != 1 {
		t.Fatalf("got %d MJPEG frames, want 1", len(mjpeg.Frames))
	}
	if w, h := mjpeg.Frames[0].Size(); w != 1920 || h != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", w, h)
	}
	if got := mjpeg.Frames[0].DefaultInterval(); got != 333333*100*time.Nanosecond {
		t.Errorf("default interval = %v, want 33.3333ms", got)
	}
	if !mjpeg.Frames[0].StillSupported() {
		t.Error("MJPEG frame should advertise still support")
	}
	if mjpeg.Still == nil {
		t.Error("still image frame descriptor not attached to its format group")
	} else if len(mjpeg.Still.ImageSizePatterns) != 1 || mjpeg.Still.ImageSizePatterns[0].Width != 640 {
		t.Errorf("still patterns = %+v", mjpeg.Still.ImageSizePatterns)
	}

	yuy2 := groups[1]
	if yuy2.Format.FourCC() != "YUY2" {
		t.Errorf("FourCC = %q, want YUY2", yuy2.Format.FourCC())
	}
	if len(yuy2.Frames) != 1 {
		t.Fatalf("got %d uncompressed frames, want 1", len(yuy2.Frames))
	}
	if intervals := yuy2.Frames[0].Intervals(); len(intervals) != 0 {
		t.Errorf("continuous frame should report no discrete intervals, got %v", intervals)
	}
}

func TestParseStreamingInterface_Truncated(t *testing.T) {
	extra := synthVSExtra()
	extra = append(extra, 30, 0x24, 0x07, 1) // bLength 30 but only 4 bytes left

	_, err := ParseStreamingInterface(extra)
	var derr *DescriptorError
	if !errors.As(err, &derr) {
		t.Fatalf("got %v, want DescriptorError", err)
	}
	if derr.Offset != len(extra)-4 {
		t.Errorf("offset = %d, want %d", derr.Offset, len(extra)-4)
	}
}

func TestParseStreamingInterface_ShortLength(t *testing.T) {
	_, err := ParseStreamingInterface([]byte{1, 0x24})
	var derr *DescriptorError
	if !errors.As(err, &derr) {
		t.Fatalf("got %v, want DescriptorError", err)
	}
}

func synthVCExtra() []byte {
	var buf []byte
	// header: UVC 1.1, one streaming interface at index 1
	buf = append(buf, block([]byte{0, 0x24, 0x01}, le16(0x0110), le16(0), le32(48_000_000), []byte{1, 1})...)
	// camera terminal id 1 advertising exposure (bit 3) and auto focus (bit 17)
	buf = append(buf, block(
		[]byte{0, 0x24, 0x02, 1}, le16(0x0201), []byte{0, 0},
		le16(0), le16(0), le16(0), []byte{3, 0x08, 0x00, 0x02},
	)...)
	// processing unit id 2 advertising brightness (bit 0)
	buf = append(buf, block([]byte{0, 0x24, 0x05, 2, 1}, le16(0), []byte{2, 0x01, 0x00, 0})...)
	// extension unit id 4 with two controls
	xu := []byte{0, 0x24, 0x06, 4}
	xu = append(xu, yuy2GUID...) // any GUID shape works here
	xu = append(xu, 2, 1, 1, 1, 0x03, 0)
	buf = append(buf, block(xu)...)
	return buf
}

func TestParseControlInterface(t *testing.T) {
	units, err := ParseControlInterface(synthVCExtra())
	if err != nil {
		t.Fatalf("ParseControlInterface failed: %v", err)
	}
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}

	header, ok := units[0].(*HeaderDescriptor)
	if !ok {
		t.Fatalf("unit 0 is %T, want HeaderDescriptor", units[0])
	}
	if header.UVC != 0x0110 {
		t.Errorf("bcdUVC = 0x%04x, want 0x0110", header.UVC)
	}
	if len(header.VideoStreamingInterfaceIndexes) != 1 || header.VideoStreamingInterfaceIndexes[0] != 1 {
		t.Errorf("VS indexes = %v, want [1]", header.VideoStreamingInterfaceIndexes)
	}

	camera, ok := units[1].(*CameraTerminalDescriptor)
	if !ok {
		t.Fatalf("unit 1 is %T, want CameraTerminalDescriptor", units[1])
	}
	if camera.TerminalID != 1 {
		t.Errorf("terminal id = %d, want 1", camera.TerminalID)
	}
	if len(camera.ControlsBitmask) != 3 || camera.ControlsBitmask[0] != 0x08 {
		t.Errorf("controls bitmask = %v", camera.ControlsBitmask)
	}

	pu, ok := units[2].(*ProcessingUnitDescriptor)
	if !ok {
		t.Fatalf("unit 2 is %T, want ProcessingUnitDescriptor", units[2])
	}
	if pu.UnitID != 2 || pu.ControlsBitmask[0] != 0x01 {
		t.Errorf("pu = %+v", pu)
	}

	xu, ok := units[3].(*ExtensionUnitDescriptor)
	if !ok {
		t.Fatalf("unit 3 is %T, want ExtensionUnitDescriptor", units[3])
	}
	if xu.UnitID != 4 || xu.NumControls != 2 || xu.ControlsBitmask[0] != 0x03 {
		t.Errorf("xu = %+v", xu)
	}

	// unit IDs unique within the interface
	seen := map[uint8]bool{}
	for _, unit := range units[1:] {
		u, ok := unit.(Unit)
		if !ok {
			continue
		}
		if seen[u.ID()] {
			t.Errorf("duplicate unit id %d", u.ID())
		}
		seen[u.ID()] = true
	}
}

func TestFourCCFromGUID(t *testing.T) {
	g := unmarshalGUID(yuy2GUID)
	if got := FourCCFromGUID(g); got != "YUY2" {
		t.Errorf("FourCC = %q, want YUY2", got)
	}
	// trailing spaces trimmed
	h264 := append([]byte{'H', '2', '6', '4'}, yuy2GUID[4:]...)
	if got := FourCCFromGUID(unmarshalGUID(h264)); got != "H264" {
		t.Errorf("FourCC = %q, want H264", got)
	}
	dv := append([]byte{'d', 'v', ' ', ' '}, yuy2GUID[4:]...)
	if got := FourCCFromGUID(unmarshalGUID(dv)); got != "dv" {
		t.Errorf("FourCC = %q, want dv", got)
	}
}
