package transfers

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"

	usb "github.com/kevmo314/go-usb"
	"github.com/rs/zerolog"
)

// IsoConfig sizes the in-flight transfer ring.
type IsoConfig struct {
	NumTransfers       int
	PacketsPerTransfer int
	PacketSize         uint32
}

func (c IsoConfig) withDefaults() IsoConfig {
	if c.NumTransfers <= 0 {
		c.NumTransfers = 12
	}
	if c.PacketsPerTransfer <= 0 {
		c.PacketsPerTransfer = 32
	}
	return c
}

// IsochronousReader keeps NumTransfers iso transfers in flight and hands
// their packets to the caller one at a time, oldest transfer first.
//
// An IsochronousTransfer in this backend is a one-shot: its completion
// signal fires once and the object cannot be resubmitted from outside the
// library. Recycling therefore replaces a fully consumed transfer with a
// freshly allocated submission, which keeps the ring full without touching
// a spent URB. The retired transfer's buffer stays valid for the payload
// handed out last, since nothing ever writes to it again.
//
// The reader is single-consumer: ReadPayload must not be called from more
// than one goroutine at a time.
type IsochronousReader struct {
	handle   *usb.DeviceHandle
	endpoint uint8
	cfg      IsoConfig
	log      zerolog.Logger

	// mu guards the ring against a concurrent Close; ReadPayload itself
	// stays single-consumer
	mu        sync.Mutex
	ring      []*usb.IsochronousTransfer
	reaped    bool // ring[0]'s one-shot completion has been consumed
	packetIdx int

	closed  atomic.Bool
	touched atomic.Int64 // packets handled; must stop advancing after Close
}

// NewIsochronousReader allocates and submits the initial transfer ring.
func (si *StreamingInterface) NewIsochronousReader(endpointAddress uint8, cfg IsoConfig) (*IsochronousReader, error) {
	cfg = cfg.withDefaults()
	r := &IsochronousReader{
		handle:   si.handle,
		endpoint: endpointAddress,
		cfg:      cfg,
		log:      si.log,
	}
	for i := 0; i < cfg.NumTransfers; i++ {
		tx, err := r.submitFresh()
		if err != nil {
			r.cancelRing()
			return nil, fmt.Errorf("failed to start isochronous ring: %w", err)
		}
		r.ring = append(r.ring, tx)
	}
	return r, nil
}

// submitFresh allocates and submits one transfer. URBs are one-shot in this
// backend, so this is both the initial fill and the recycle path.
func (r *IsochronousReader) submitFresh() (*usb.IsochronousTransfer, error) {
	tx, err := r.handle.NewIsochronousTransfer(r.endpoint, r.cfg.PacketsPerTransfer, int(r.cfg.PacketSize))
	if err != nil {
		return nil, err
	}
	if err := tx.Submit(); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *IsochronousReader) cancelRing() {
	for _, tx := range r.ring {
		tx.Cancel()
	}
}

// ReadPayload blocks until the next non-empty packet completes and returns
// its parsed payload. Packets with a non-OK status surface as non-fatal
// TransferErrors so the reassembler can mark the in-progress frame errored
// and keep going; a dead device is fatal.
func (r *IsochronousReader) ReadPayload() (*Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.closed.Load() {
			return nil, &TransferError{Kind: TransferCancelled}
		}
		tx := r.ring[0]

		if !r.reaped {
			// the completion signal is one-shot; consume it exactly once
			if err := tx.Wait(); err != nil {
				if r.closed.Load() {
					return nil, &TransferError{Kind: TransferCancelled}
				}
				if err == usb.ErrTimeout {
					continue
				}
				return nil, &TransferError{Kind: TransferNoDevice, Err: err}
			}
			if err := urbStatusError(tx.Status()); err != nil {
				return nil, err
			}
			r.reaped = true
			r.packetIdx = 0
		}

		packets := tx.Packets()
		if r.packetIdx >= len(packets) {
			// fully drained: retire this transfer and refill the ring
			fresh, err := r.submitFresh()
			if err != nil {
				if r.closed.Load() {
					return nil, &TransferError{Kind: TransferCancelled}
				}
				return nil, &TransferError{Kind: TransferNoDevice, Err: fmt.Errorf("failed to refill isochronous ring: %w", err)}
			}
			r.ring = append(r.ring[1:], fresh)
			r.reaped = false
			continue
		}

		pkt := packets[r.packetIdx]
		idx := r.packetIdx
		r.packetIdx++
		r.touched.Add(1)

		if pkt.Status != 0 {
			return nil, packetStatusError(pkt.Status)
		}
		if pkt.ActualLength == 0 {
			continue
		}

		buf := tx.Buffer()
		start := idx * int(pkt.Length)
		end := start + int(pkt.ActualLength)
		if end > len(buf) {
			return nil, &TransferError{Kind: TransferDataError, Err: fmt.Errorf("packet %d overruns transfer buffer", idx)}
		}

		p := &Payload{}
		if err := p.UnmarshalBinary(buf[start:end]); err != nil {
			return nil, &TransferError{Kind: TransferDataError, Err: err}
		}
		return p, nil
	}
}

// urbStatusError maps a whole-transfer status. A cancelled or vanished URB
// ends the stream; anything else is absorbed per packet.
func urbStatusError(status int32) error {
	switch syscall.Errno(-status) {
	case 0:
		return nil
	case syscall.ENODEV, syscall.ESHUTDOWN:
		return &TransferError{Kind: TransferNoDevice}
	case syscall.ECONNRESET, syscall.ENOENT:
		return &TransferError{Kind: TransferCancelled}
	default:
		return nil // per-packet statuses carry the detail
	}
}

// packetStatusError maps a usbfs per-packet status to the taxonomy. Statuses
// are negative errno values.
func packetStatusError(status int32) error {
	switch syscall.Errno(-status) {
	case syscall.EPIPE:
		return &TransferError{Kind: TransferStall}
	case syscall.EOVERFLOW:
		return &TransferError{Kind: TransferOverflow}
	case syscall.ENODEV, syscall.ESHUTDOWN:
		return &TransferError{Kind: TransferNoDevice}
	case syscall.ECONNRESET, syscall.ENOENT:
		return &TransferError{Kind: TransferCancelled}
	default:
		return &TransferError{Kind: TransferDataError, Err: fmt.Errorf("iso packet status %d", status)}
	}
}

// PacketsHandled reports how many packets the reader has consumed. It stops
// advancing once Close returns, so no completion touches reader state after
// a stop.
func (r *IsochronousReader) PacketsHandled() int64 {
	return r.touched.Load()
}

// Close cancels every in-flight transfer and consumes their completion
// signals before returning, so no reaper is left running against freed
// state. The already-reaped head transfer has no signal left to wait on.
func (r *IsochronousReader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	// Wait has no timeout: a ReadPayload blocked in it keeps the lock until
	// its transfer completes, then sees closed on its next call
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelRing()
	for i, tx := range r.ring {
		if i == 0 && r.reaped {
			continue
		}
		tx.Wait()
	}
	return nil
}
