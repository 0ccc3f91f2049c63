package deviceinfo

import "github.com/OpenTraceLab/OpenTraceSTLink/pkg/idcode"

// DBGMCU_IDCODE addresses. Cortex-M0/M0+ parts map it on the APB bus, the
// rest in the private peripheral space.
const (
	DBGMCUAddr   = 0xE0042000
	DBGMCUAddrM0 = 0x40015800
	devIDMask    = 0xFFF
	revIDShift   = 16
)

type portKey struct {
	Designer   uint16
	PartNumber uint16
}

var (
	ports = make(map[portKey]DebugPort)
	mcus  = make(map[uint16]MCU)
)

func registerPort(designer, part uint16, info DebugPort) {
	ports[portKey{Designer: designer, PartNumber: part}] = info
}

func registerMCU(info MCU) {
	mcus[info.DevID] = info
}

// LookupPort returns debug port information for a core ID.
// Falls back to generic info if the port is not in the database
func LookupPort(rawID uint32) DebugPort {
	id := idcode.ParseIDCode(rawID)
	m, _ := idcode.LookupManufacturer(id.Designer)

	if info, ok := ports[portKey{Designer: id.Designer, PartNumber: id.PartNumber}]; ok {
		info.IDCode = id
		info.Manufacturer = m
		info.Known = true
		return info
	}

	return DebugPort{
		IDCode:       id,
		Manufacturer: m,
		Name:         "Unknown debug port",
	}
}

// LookupMCU decodes a DBGMCU_IDCODE value.
func LookupMCU(dbgmcu uint32) MCU {
	devID := uint16(dbgmcu & devIDMask)
	revID := uint16(dbgmcu >> revIDShift)

	if info, ok := mcus[devID]; ok {
		info.RevID = revID
		info.Known = true
		return info
	}
	return MCU{DevID: devID, RevID: revID, Name: "Unknown device"}
}

// DBGMCUAddress returns where to read DBGMCU_IDCODE for a core ID. The
// Cortex-M0 SW-DP parts keep it at a different address.
func DBGMCUAddress(rawID uint32) uint32 {
	if p := LookupPort(rawID); p.Known && p.Cores == "Cortex-M0/M0+" {
		return DBGMCUAddrM0
	}
	return DBGMCUAddr
}
