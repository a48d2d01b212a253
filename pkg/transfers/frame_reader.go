package transfers

import (
	"bytes"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var jpegSOI = []byte{0xff, 0xd8}
var jpegEOI = []byte{0xff, 0xd9}

// Frame is a completed video frame.
type Frame struct {
	FourCC        string
	Width, Height uint16
	Payload       []byte

	// Sequence increases by one per frame boundary, dropped frames
	// included, so consumers detect drops by gaps in delivered frames.
	Sequence uint64

	// PTS is the device clock timestamp from the first packet of the
	// frame that carried one.
	PTS    uint32
	HasPTS bool

	// Captured is the host monotonic-clock completion time.
	Captured time.Time
}

// FrameReaderConfig fixes the per-stream reassembly policy.
type FrameReaderConfig struct {
	FourCC        string
	Width, Height uint16

	// ExpectedSize is dwMaxVideoFrameSize from COMMIT. For fixed-size
	// (uncompressed) formats a completion below this size is a truncated
	// frame; zero disables the check for variable-size codecs.
	ExpectedSize uint32

	// MJPEG frames vary in size but must carry the JPEG SOI marker.
	MJPEG bool

	// DeliverPartial passes truncated fixed-size frames through instead
	// of discarding them.
	DeliverPartial bool
}

// FrameStats counts reassembly outcomes.
type FrameStats struct {
	Delivered uint64
	Dropped   uint64
	Truncated uint64
	Errored   uint64
	BadMagic  uint64
}

// FrameReader reassembles UVC payloads into frames. One frame is in
// progress at any time; the Frame ID toggle and the end-of-frame bit mark
// the boundaries.
type FrameReader struct {
	pr  PayloadReader
	cfg FrameReaderConfig
	log zerolog.Logger

	fid     *bool
	buf     []byte
	errored bool
	pts     uint32
	hasPTS  bool
	packets int

	seq   uint64
	stats FrameStats
}

func NewFrameReader(pr PayloadReader, cfg FrameReaderConfig, log zerolog.Logger) *FrameReader {
	return &FrameReader{pr: pr, cfg: cfg, log: log}
}

// maxPacketsPerFrame bounds a runaway frame that never sees its EOF; the
// slack above the expected packet count absorbs header overhead and empty
// packets.
func (r *FrameReader) maxPacketsPerFrame(payloadLen int) int {
	if r.cfg.ExpectedSize == 0 || payloadLen == 0 {
		return 0
	}
	n := int(r.cfg.ExpectedSize)/payloadLen + 16
	if n < 4 {
		n = 4
	}
	return n
}

// ReadFrame blocks until a frame completes and survives the completion
// policy. Dropped frames consume a sequence number and are counted in
// Stats; the read keeps going until a deliverable frame arrives.
func (r *FrameReader) ReadFrame() (*Frame, error) {
	for {
		p, err := r.pr.ReadPayload()
		if err != nil {
			var te *TransferError
			if errors.As(err, &te) && !te.Fatal() {
				// packet-level damage poisons the frame, not the stream
				r.errored = true
				continue
			}
			return nil, err
		}

		if r.fid == nil {
			if len(p.Data) == 0 {
				// header-only packets do not start a frame
				continue
			}
			fid := p.FrameID()
			r.fid = &fid
			r.reset(p.Error())
		} else if p.FrameID() != *r.fid {
			// toggle without a preceding EOF: the prior frame is done,
			// truncated if it missed its expected size
			frame := r.finalize("fid-toggle")
			fid := p.FrameID()
			r.fid = &fid
			r.reset(false)
			r.consume(p)
			if p.EndOfFrame() {
				if eofFrame := r.finalize("eof"); frame == nil {
					frame = eofFrame
				}
				r.fid = nil
			}
			if frame != nil {
				return frame, nil
			}
			continue
		}

		r.consume(p)

		if p.EndOfFrame() {
			frame := r.finalize("eof")
			r.fid = nil
			if frame != nil {
				return frame, nil
			}
		}
	}
}

func (r *FrameReader) reset(errored bool) {
	r.buf = r.buf[:0]
	r.errored = errored
	r.hasPTS = false
	r.pts = 0
	r.packets = 0
}

func (r *FrameReader) consume(p *Payload) {
	if p.Error() {
		r.errored = true
	}
	if p.HasPTS() && !r.hasPTS {
		r.pts = p.PTS
		r.hasPTS = true
	}
	if len(p.Data) > 0 {
		r.buf = append(r.buf, p.Data...)
		if r.cfg.ExpectedSize != 0 && uint32(len(r.buf)) > r.cfg.ExpectedSize {
			r.errored = true
		}
	}
	r.packets++
	if limit := r.maxPacketsPerFrame(len(p.Data)); limit > 0 && r.packets > limit {
		r.log.Debug().Int("packets", r.packets).Msg("abandoning runaway frame")
		r.errored = true
	}
}

// finalize applies the completion policy to the in-progress buffer and
// either returns a deliverable frame or records the drop. The sequence
// number advances either way.
func (r *FrameReader) finalize(reason string) *Frame {
	seq := r.seq
	r.seq++

	drop := func(kind FrameErrorKind) *Frame {
		r.stats.Dropped++
		switch kind {
		case FrameTruncated:
			r.stats.Truncated++
		case FrameBadMagic:
			r.stats.BadMagic++
		case FrameErrored:
			r.stats.Errored++
		}
		r.log.Debug().Uint64("seq", seq).Str("reason", reason).Stringer("kind", kind).Int("size", len(r.buf)).Msg("frame dropped")
		return nil
	}

	if r.errored {
		return drop(FrameErrored)
	}
	if len(r.buf) == 0 {
		r.seq-- // nothing accumulated, not a frame boundary
		return nil
	}

	payload := r.buf
	if r.cfg.MJPEG {
		if !bytes.HasPrefix(payload, jpegSOI) {
			return drop(FrameBadMagic)
		}
		payload = trimMJPEG(payload)
	} else if r.cfg.ExpectedSize != 0 && uint32(len(payload)) != r.cfg.ExpectedSize {
		if !r.cfg.DeliverPartial {
			return drop(FrameTruncated)
		}
		r.stats.Truncated++
	}

	frame := &Frame{
		FourCC:   r.cfg.FourCC,
		Width:    r.cfg.Width,
		Height:   r.cfg.Height,
		Payload:  bytes.Clone(payload),
		Sequence: seq,
		PTS:      r.pts,
		HasPTS:   r.hasPTS,
		Captured: time.Now(),
	}
	r.stats.Delivered++
	return frame
}

// trimMJPEG cuts trailing padding some cameras append after the JPEG EOI
// marker.
func trimMJPEG(payload []byte) []byte {
	eoi := bytes.LastIndex(payload, jpegEOI)
	if eoi == -1 || eoi+2 == len(payload) {
		return payload
	}
	return payload[:eoi+2]
}

// Stats returns a snapshot of the reassembly counters.
func (r *FrameReader) Stats() FrameStats {
	return r.stats
}

// Close closes the underlying payload reader.
func (r *FrameReader) Close() error {
	return r.pr.Close()
}
