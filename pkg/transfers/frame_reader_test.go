package transfers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// scriptedReader replays a fixed sequence of payloads and errors.
type scriptedReader struct {
	events []any // *Payload or error
	closed bool
}

func (r *scriptedReader) ReadPayload() (*Payload, error) {
	if len(r.events) == 0 {
		return nil, &TransferError{Kind: TransferCancelled}
	}
	ev := r.events[0]
	r.events = r.events[1:]
	if err, ok := ev.(error); ok {
		return nil, err
	}
	return ev.(*Payload), nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

func pkt(fid, eof, errBit bool, data []byte) *Payload {
	var bm uint8
	if fid {
		bm |= 0b001
	}
	if eof {
		bm |= 0b010
	}
	if errBit {
		bm |= 0b01000000
	}
	return &Payload{HeaderInfoBitmask: bm | 0b10000000, Data: data}
}

func newTestReader(events []any, cfg FrameReaderConfig) *FrameReader {
	return NewFrameReader(&scriptedReader{events: events}, cfg, zerolog.Nop())
}

func TestFrameReader_EOFCompletion(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0x01, 0x02}, 0xFF, 0xD9)
	r := newTestReader([]any{
		pkt(false, false, false, jpeg[:3]),
		pkt(false, true, false, jpeg[3:]),
		pkt(true, true, false, jpeg),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f1, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(f1.Payload, jpeg) {
		t.Errorf("payload = %x, want %x", f1.Payload, jpeg)
	}
	if f1.Sequence != 0 {
		t.Errorf("sequence = %d, want 0", f1.Sequence)
	}

	f2, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f2.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", f2.Sequence)
	}
}

func TestFrameReader_FIDToggleTruncates(t *testing.T) {
	full := bytes.Repeat([]byte{0xAB}, 8)
	r := newTestReader([]any{
		// first frame never sees its EOF and misses half its bytes
		pkt(false, false, false, full[:4]),
		// toggle implies the boundary; this frame completes properly
		pkt(true, false, false, full[:4]),
		pkt(true, true, false, full[4:]),
	}, FrameReaderConfig{FourCC: "YUY2", ExpectedSize: 8})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(f.Payload) != 8 {
		t.Errorf("payload size = %d, want 8", len(f.Payload))
	}
	// the truncated frame consumed sequence 0
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", f.Sequence)
	}
	stats := r.Stats()
	if stats.Dropped != 1 || stats.Truncated != 1 {
		t.Errorf("stats = %+v, want one truncated drop", stats)
	}
}

func TestFrameReader_DeliverPartial(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, []byte{1, 2, 3, 4}),
		pkt(true, true, false, []byte{5, 6, 7, 8}),
	}, FrameReaderConfig{FourCC: "YUY2", ExpectedSize: 8, DeliverPartial: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(f.Payload) != 4 {
		t.Errorf("payload size = %d, want 4 (partial)", len(f.Payload))
	}
}

func TestFrameReader_MJPEGBadMagicDropped(t *testing.T) {
	good := []byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}
	r := newTestReader([]any{
		pkt(false, true, false, []byte{0x00, 0x01, 0x02}), // not SOI
		pkt(true, true, false, good),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(f.Payload, good) {
		t.Errorf("payload = %x, want %x", f.Payload, good)
	}
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1 (bad frame consumed 0)", f.Sequence)
	}
	if stats := r.Stats(); stats.BadMagic != 1 {
		t.Errorf("stats = %+v, want one bad magic drop", stats)
	}
}

func TestFrameReader_MJPEGTrimsAfterEOI(t *testing.T) {
	padded := append([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}, bytes.Repeat([]byte{0x00}, 6)...)
	r := newTestReader([]any{
		pkt(false, true, false, padded),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(f.Payload, padded[:5]) {
		t.Errorf("payload = %x, want trim at EOI", f.Payload)
	}
}

func TestFrameReader_ErrorBitDiscardsFrame(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, []byte{1, 2}),
		pkt(false, false, true, []byte{3, 4}), // error bit poisons the frame
		pkt(false, true, false, []byte{5, 6}),
		pkt(true, true, false, []byte{0xFF, 0xD8, 0xFF, 0xD9}),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", f.Sequence)
	}
	if stats := r.Stats(); stats.Errored != 1 {
		t.Errorf("stats = %+v, want one errored drop", stats)
	}
}

func TestFrameReader_EmptyPacketsKeepState(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, []byte{0xFF, 0xD8}),
		pkt(false, false, false, nil), // header-only packet mid-frame
		pkt(false, false, false, nil),
		pkt(false, true, false, []byte{0xFF, 0xD9}),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(f.Payload, []byte{0xFF, 0xD8, 0xFF, 0xD9}) {
		t.Errorf("payload = %x", f.Payload)
	}
}

func TestFrameReader_HeaderOnlyDoesNotStartFrame(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, nil), // idle: empty packets must not open a frame
		pkt(true, true, false, []byte{0xFF, 0xD8, 0xFF, 0xD9}),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Sequence != 0 {
		t.Errorf("sequence = %d, want 0", f.Sequence)
	}
}

func TestFrameReader_PacketErrorMarksFrame(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, []byte{0xFF, 0xD8}),
		&TransferError{Kind: TransferStall}, // packet-level damage
		pkt(false, true, false, []byte{0xFF, 0xD9}),
		pkt(true, true, false, []byte{0xFF, 0xD8, 0xFF, 0xD9}),
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1 (stalled frame dropped)", f.Sequence)
	}
}

func TestFrameReader_FatalErrorSurfaces(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, []byte{1}),
		&TransferError{Kind: TransferNoDevice},
	}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})

	_, err := r.ReadFrame()
	var te *TransferError
	if !errors.As(err, &te) || te.Kind != TransferNoDevice {
		t.Fatalf("err = %v, want fatal TransferError", err)
	}
}

func TestFrameReader_PTSFromFirstPacket(t *testing.T) {
	first := pkt(false, false, false, []byte{0xFF, 0xD8})
	first.HeaderInfoBitmask |= 0b100
	first.PTS = 12345
	second := pkt(false, true, false, []byte{0xFF, 0xD9})
	second.HeaderInfoBitmask |= 0b100
	second.PTS = 99999

	r := newTestReader([]any{first, second}, FrameReaderConfig{FourCC: "MJPG", MJPEG: true})
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !f.HasPTS || f.PTS != 12345 {
		t.Errorf("PTS = %d (has=%t), want 12345", f.PTS, f.HasPTS)
	}
}

func TestFrameReader_OverflowMarksErrored(t *testing.T) {
	r := newTestReader([]any{
		pkt(false, false, false, bytes.Repeat([]byte{1}, 6)),
		pkt(false, true, false, bytes.Repeat([]byte{1}, 6)), // 12 > expected 8
		pkt(true, true, false, bytes.Repeat([]byte{2}, 8)),
	}, FrameReaderConfig{FourCC: "YUY2", ExpectedSize: 8})

	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1 (overflowed frame dropped)", f.Sequence)
	}
	if stats := r.Stats(); stats.Errored != 1 {
		t.Errorf("stats = %+v, want one errored drop", stats)
	}
}
