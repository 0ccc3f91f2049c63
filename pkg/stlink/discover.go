package stlink

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// ProbeKind categorizes probe families.
type ProbeKind string

const (
	ProbeKindSTLink  ProbeKind = "st-link"
	ProbeKindSim     ProbeKind = "simulator"
	ProbeKindUnknown ProbeKind = "unknown"
)

// ProbeInfo describes a detected probe.
type ProbeInfo struct {
	Kind        ProbeKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description for the probe.
func (p ProbeInfo) Label() string {
	if p.Description != "" {
		return p.Description
	}
	if p.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(p.Kind), p.VendorID, p.ProductID)
	}
	return fmt.Sprintf("Probe %04X:%04X", p.VendorID, p.ProductID)
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownSTLinkVIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDST, ProductID: ProductIDSTLinkV1, Description: "ST-Link/V1"},
	{VendorID: VendorIDST, ProductID: ProductIDSTLinkV2, Description: "ST-Link/V2"},
	{VendorID: VendorIDST, ProductID: ProductIDV21, Description: "ST-Link/V2-1"},
	{VendorID: VendorIDST, ProductID: ProductIDV3, Description: "ST-Link/V3"},
}

// DiscoverProbes lists attached USB devices that match known ST-Link VID/PID
// pairs. Devices are only inspected, never opened. The simulator entry is
// always appended so commands can be exercised without hardware.
func DiscoverProbes(ctx context.Context) ([]ProbeInfo, error) {
	var results []ProbeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, ProbeInfo{
		Kind:        ProbeKindSim,
		Description: "Simulator (no hardware)",
		VendorID:    VendorIDST,
		ProductID:   ProductIDSTLinkV2,
	})

	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (ProbeInfo, bool) {
	for _, known := range knownSTLinkVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return ProbeInfo{
				Kind:        ProbeKindSTLink,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
				Bus:         desc.Bus,
				Address:     desc.Address,
			}, true
		}
	}
	return ProbeInfo{}, false
}
