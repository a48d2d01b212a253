package transfers

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PayloadReader yields one parsed UVC payload per non-empty packet.
type PayloadReader interface {
	io.Closer
	ReadPayload() (*Payload, error)
}

// Payload is one iso (or bulk) packet split into its UVC payload header and
// data bytes, UVC spec 1.5, section 2.4.3.3.
type Payload struct {
	HeaderInfoBitmask uint8
	PTS               uint32
	SCR               struct {
		SourceTimeClock uint32
		TokenCounter    uint16
	}
	Data []byte
}

func (p *Payload) FrameID() bool {
	return p.HeaderInfoBitmask&0b00000001 != 0
}

func (p *Payload) EndOfFrame() bool {
	return p.HeaderInfoBitmask&0b00000010 != 0
}

func (p *Payload) HasPTS() bool {
	return p.HeaderInfoBitmask&0b00000100 != 0
}

func (p *Payload) HasSCR() bool {
	return p.HeaderInfoBitmask&0b00001000 != 0
}

func (p *Payload) PayloadSpecificBit() bool {
	return p.HeaderInfoBitmask&0b00010000 != 0
}

func (p *Payload) StillImage() bool {
	return p.HeaderInfoBitmask&0b00100000 != 0
}

func (p *Payload) Error() bool {
	return p.HeaderInfoBitmask&0b01000000 != 0
}

func (p *Payload) EndOfHeader() bool {
	return p.HeaderInfoBitmask&0b10000000 != 0
}

// UnmarshalBinary parses one packet. bHeaderLength must be at least two (a
// header of exactly two bytes carries no PTS and no SCR) and no longer than
// the packet itself. Data aliases buf; callers that keep the payload beyond
// the packet's lifetime must copy it.
func (p *Payload) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 {
		return io.ErrShortBuffer
	}
	headerLen := int(buf[0])
	if headerLen < 2 || headerLen > len(buf) {
		return fmt.Errorf("payload header length %d out of range for %d byte packet: %w", headerLen, len(buf), io.ErrShortBuffer)
	}
	p.HeaderInfoBitmask = buf[1]
	offset := 2
	if p.HasPTS() && offset+4 <= headerLen {
		p.PTS = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
	}
	if p.HasSCR() && offset+6 <= headerLen {
		p.SCR.SourceTimeClock = binary.LittleEndian.Uint32(buf[offset : offset+4])
		p.SCR.TokenCounter = binary.LittleEndian.Uint16(buf[offset+4 : offset+6])
	}
	p.Data = buf[headerLen:]
	return nil
}

func (p *Payload) String() string {
	return fmt.Sprintf("payload{fid=%t eof=%t err=%t pts=%d len=%d}",
		p.FrameID(), p.EndOfFrame(), p.Error(), p.PTS, len(p.Data))
}
