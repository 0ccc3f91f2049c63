package stlink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// ST-Link USB identifiers
	VendorIDST        = 0x0483
	ProductIDSTLinkV1 = 0x3744
	ProductIDSTLinkV2 = 0x3748
	ProductIDV21      = 0x374B
	ProductIDV3       = 0x374F

	// Endpoint addresses used by the debug interface
	EndpointIn  = 0x80
	EndpointOut = 0x00
	RxEndpoint  = 1 | EndpointIn
	TxEndpoint  = 2 | EndpointOut

	DefaultTimeout = 1000 * time.Millisecond

	usbConfig    = 1
	usbInterface = 0
)

// Transport is the blocking bulk-transfer collaborator a Session drives.
// Implementations report the number of bytes actually moved; the session
// treats anything short of the request as a failure.
type Transport interface {
	Write(endpoint uint8, data []byte, timeout time.Duration) (int, error)
	Read(endpoint uint8, data []byte, timeout time.Duration) (int, error)
	Close() error
}

// USBTransport moves bulk transfers to and from a probe through gousb.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	vid uint16
	pid uint16
}

// OpenUSB opens the first probe matching vid:pid and claims its debug
// interface. Every resource acquired along the way is released on failure.
func OpenUSB(vid, pid uint16) (Transport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: open %04X:%04X: %v", ErrTransport, vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: device not found (VID:0x%04X PID:0x%04X)", ErrTransport, vid, pid)
	}

	// Not supported on every platform
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx: ctx,
		dev: dev,
		vid: vid,
		pid: pid,
	}

	if err := t.claimInterface(); err != nil {
		t.Close()
		return nil, err
	}

	return t, nil
}

// claimInterface selects the configuration, claims interface 0 and opens
// the bulk endpoints
func (t *USBTransport) claimInterface() error {
	cfg, err := t.dev.Config(usbConfig)
	if err != nil {
		return fmt.Errorf("%w: set configuration %d: %v", ErrTransport, usbConfig, err)
	}
	t.cfg = cfg

	intf, err := cfg.Interface(usbInterface, 0)
	if err != nil {
		return fmt.Errorf("%w: claim interface %d: %v", ErrTransport, usbInterface, err)
	}
	t.intf = intf

	epOut, err := intf.OutEndpoint(TxEndpoint &^ EndpointIn)
	if err != nil {
		return fmt.Errorf("%w: open OUT endpoint: %v", ErrTransport, err)
	}
	t.epOut = epOut

	epIn, err := intf.InEndpoint(RxEndpoint &^ EndpointIn)
	if err != nil {
		return fmt.Errorf("%w: open IN endpoint: %v", ErrTransport, err)
	}
	t.epIn = epIn

	return nil
}

// Write sends data to the OUT endpoint
func (t *USBTransport) Write(endpoint uint8, data []byte, timeout time.Duration) (int, error) {
	if t.epOut == nil {
		return 0, fmt.Errorf("%w: transport closed", ErrTransport)
	}
	if endpoint != TxEndpoint {
		return 0, fmt.Errorf("%w: no OUT endpoint 0x%02X", ErrTransport, endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.epOut.WriteContext(ctx, data)
	if err != nil {
		return n, fmt.Errorf("USB write failed: %w", err)
	}
	return n, nil
}

// Read fills data from the IN endpoint
func (t *USBTransport) Read(endpoint uint8, data []byte, timeout time.Duration) (int, error) {
	if t.epIn == nil {
		return 0, fmt.Errorf("%w: transport closed", ErrTransport)
	}
	if endpoint != RxEndpoint {
		return 0, fmt.Errorf("%w: no IN endpoint 0x%02X", ErrTransport, endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.epIn.ReadContext(ctx, data)
	if err != nil {
		return n, fmt.Errorf("USB read failed: %w", err)
	}
	return n, nil
}

// Close releases USB resources
func (t *USBTransport) Close() error {
	t.epOut = nil
	t.epIn = nil
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
