package transfers

import (
	"errors"
	"io"
	"testing"
)

func TestPayload_UnmarshalBinary(t *testing.T) {
	// 12 byte header with PTS and SCR, then payload bytes
	buf := []byte{
		12, 0b10001111, // bHeaderLength, bmHeaderInfo: EOH|SCR|PTS|EOF|FID
		0x15, 0x16, 0x05, 0x00, // PTS = 333333
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, // SCR
		0xAA, 0xBB,
	}
	p := &Payload{}
	if err := p.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if !p.FrameID() || !p.EndOfFrame() || !p.HasPTS() || !p.HasSCR() || !p.EndOfHeader() {
		t.Errorf("flag accessors wrong for bitmask %08b", p.HeaderInfoBitmask)
	}
	if p.Error() || p.StillImage() {
		t.Errorf("unexpected error/still bits for bitmask %08b", p.HeaderInfoBitmask)
	}
	if p.PTS != 333333 {
		t.Errorf("PTS = %d, want 333333", p.PTS)
	}
	if p.SCR.SourceTimeClock != 0x04030201 {
		t.Errorf("SCR clock = %08x", p.SCR.SourceTimeClock)
	}
	if p.SCR.TokenCounter != 0x0605 {
		t.Errorf("SCR token = %04x", p.SCR.TokenCounter)
	}
	if len(p.Data) != 2 || p.Data[0] != 0xAA {
		t.Errorf("Data = %v, want [AA BB]", p.Data)
	}
}

func TestPayload_MinimalHeader(t *testing.T) {
	// bHeaderLength of exactly 2 is valid: no PTS, no SCR
	p := &Payload{}
	if err := p.UnmarshalBinary([]byte{2, 0x01, 0xCC}); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if !p.FrameID() {
		t.Error("FID not set")
	}
	if len(p.Data) != 1 || p.Data[0] != 0xCC {
		t.Errorf("Data = %v, want [CC]", p.Data)
	}
}

func TestPayload_HeaderOnly(t *testing.T) {
	// actual_length == bHeaderLength leaves an empty payload
	p := &Payload{}
	if err := p.UnmarshalBinary([]byte{2, 0x02}); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if len(p.Data) != 0 {
		t.Errorf("Data = %v, want empty", p.Data)
	}
	if !p.EndOfFrame() {
		t.Error("EOF not set")
	}
}

func TestPayload_BadHeaderLength(t *testing.T) {
	cases := [][]byte{
		{0, 0x00, 0xAA}, // bHeaderLength < 2
		{1, 0x00},       // bHeaderLength < 2
		{9, 0x00, 0xAA}, // bHeaderLength > packet
		{12},            // shorter than minimum header
	}
	for _, buf := range cases {
		p := &Payload{}
		if err := p.UnmarshalBinary(buf); !errors.Is(err, io.ErrShortBuffer) {
			t.Errorf("UnmarshalBinary(%v) = %v, want ErrShortBuffer", buf, err)
		}
	}
}

func TestPayload_ErrorBit(t *testing.T) {
	p := &Payload{}
	if err := p.UnmarshalBinary([]byte{2, 0b01000000}); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if !p.Error() {
		t.Error("error bit not reported")
	}
}
