package uvc

import (
	"sync/atomic"

	usb "github.com/kevmo314/go-usb"
)

// startInterruptListener drains the VC interrupt endpoint while a stream is
// active. Status packets (control changes, stream errors) are logged; some
// cameras wedge their status pipe if nobody reads it. Returns a stop
// function, or nil when the device has no interrupt endpoint.
func (d *UVCDevice) startInterruptListener() func() {
	info := d.info
	if info.vcInterruptEndpoint == 0 {
		return nil
	}
	if err := d.claimVC(); err != nil {
		d.log.Debug().Err(err).Msg("VC interrupt listener unavailable")
		return nil
	}

	var stopped atomic.Bool
	var inflight atomic.Pointer[usb.AsyncTransfer]
	done := make(chan struct{})

	go func() {
		defer close(done)
		for !stopped.Load() {
			t, err := d.handle.NewInterruptTransfer(info.vcInterruptEndpoint, int(info.vcInterruptPacketSize))
			if err != nil {
				return
			}
			inflight.Store(t)
			if err := t.Submit(); err != nil {
				return
			}
			if err := t.Wait(); err != nil {
				if stopped.Load() {
					return
				}
				continue
			}
			n := t.ActualLength()
			if n > 0 {
				d.log.Debug().Hex("status", t.Buffer()[:n]).Msg("VC interrupt")
			}
		}
	}()

	return func() {
		stopped.Store(true)
		if t := inflight.Load(); t != nil {
			t.Cancel()
		}
		<-done
		d.releaseVC()
	}
}
