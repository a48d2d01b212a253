package transfers

import (
	"fmt"
	"sync"

	usb "github.com/kevmo314/go-usb"
)

const (
	// defaultBulkTransfers is the number of queued URBs for bulk reads.
	defaultBulkTransfers = 64

	// maxURBBufferSize matches the kernel's MAX_USBFS_BUFFER_SIZE; larger
	// URB buffers fail with ENOMEM.
	maxURBBufferSize = 16384
)

// BulkReader implements PayloadReader over a bulk video endpoint. It keeps
// multiple URBs in flight and reassembles one UVC payload per short
// transfer, which is how bulk endpoints delimit payloads.
type BulkReader struct {
	handle    *usb.DeviceHandle
	endpoint  uint8
	urbSize   int
	transfers []*usb.AsyncTransfer
	buf       []byte

	mu       sync.Mutex
	nextRead int
	closed   bool
}

// NewBulkReader creates the reader and fills the URB pipeline.
func (si *StreamingInterface) NewBulkReader(endpointAddress uint8, maxPayload uint32) (*BulkReader, error) {
	urbSize := maxURBBufferSize
	if int(maxPayload) < urbSize {
		urbSize = int(maxPayload)
	}
	r := &BulkReader{
		handle:    si.handle,
		endpoint:  endpointAddress,
		urbSize:   urbSize,
		transfers: make([]*usb.AsyncTransfer, defaultBulkTransfers),
		buf:       make([]byte, maxPayload),
	}
	for i := range r.transfers {
		t, err := si.handle.NewBulkTransfer(endpointAddress, urbSize)
		if err != nil {
			r.cancelFirst(i)
			return nil, fmt.Errorf("failed to create bulk transfer %d: %w", i, err)
		}
		r.transfers[i] = t
	}
	for i, t := range r.transfers {
		if err := t.Submit(); err != nil {
			r.cancelFirst(len(r.transfers))
			return nil, fmt.Errorf("failed to submit bulk transfer %d: %w", i, err)
		}
	}
	return r, nil
}

func (r *BulkReader) cancelFirst(n int) {
	for j := 0; j < n; j++ {
		if r.transfers[j] != nil {
			r.transfers[j].Cancel()
		}
	}
}

// ReadPayload accumulates URBs until a short transfer delimits the payload,
// then parses the UVC header.
func (r *BulkReader) ReadPayload() (*Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, &TransferError{Kind: TransferCancelled}
	}

	written := 0
	for {
		t := r.transfers[r.nextRead]
		if err := t.Wait(); err != nil {
			return nil, mapUSBError(err)
		}
		n := t.ActualLength()
		if written+n > len(r.buf) {
			return nil, &TransferError{Kind: TransferOverflow, Err: fmt.Errorf("bulk payload exceeds %d bytes", len(r.buf))}
		}
		// copy before resubmitting to avoid racing the kernel
		copy(r.buf[written:], t.Buffer()[:n])
		written += n

		if err := t.Submit(); err != nil {
			return nil, mapUSBError(err)
		}
		r.nextRead = (r.nextRead + 1) % len(r.transfers)

		// a short transfer (including a ZLP) ends the payload
		if n < r.urbSize {
			if written == 0 {
				continue
			}
			p := &Payload{}
			if err := p.UnmarshalBinary(r.buf[:written]); err != nil {
				return nil, &TransferError{Kind: TransferDataError, Err: err}
			}
			return p, nil
		}
	}
}

// Close cancels all pending transfers and waits for the cancellations.
func (r *BulkReader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	for _, t := range r.transfers {
		t.Cancel()
	}
	for _, t := range r.transfers {
		t.Wait()
	}
	return nil
}
