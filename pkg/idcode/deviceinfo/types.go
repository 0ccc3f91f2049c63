package deviceinfo

import "github.com/OpenTraceLab/OpenTraceSTLink/pkg/idcode"

// DebugPort describes the debug port behind a core ID.
type DebugPort struct {
	IDCode       idcode.IDCode
	Manufacturer idcode.Manufacturer

	Name  string // "SW-DP"
	Wire  string // "swd" or "jtag"
	DPv   int    // debug port architecture version
	Cores string // "Cortex-M3/M4"
	Known bool
}

// MCU describes a device identified by the DEV_ID field of DBGMCU_IDCODE.
type MCU struct {
	DevID    uint16 // DBGMCU_IDCODE[11:0]
	RevID    uint16 // DBGMCU_IDCODE[31:16]
	Name     string // "STM32F40x/41x"
	Family   string // "STM32F4"
	Core     string // "Cortex-M4"
	FlashKiB int    // largest flash size in the line, 0 if unknown
	Known    bool
}
