package deviceinfo

import "github.com/OpenTraceLab/OpenTraceSTLink/pkg/idcode"

// ARM debug port entries
func init() {
	const arm = idcode.DesignerARM

	registerPort(arm, 0xBA00, DebugPort{
		Name:  "JTAG-DP",
		Wire:  "jtag",
		DPv:   0,
		Cores: "Cortex-M3/M4",
	})

	registerPort(arm, 0xBA01, DebugPort{
		Name:  "SW-DP",
		Wire:  "swd",
		DPv:   1,
		Cores: "Cortex-M3/M4",
	})

	registerPort(arm, 0xBA02, DebugPort{
		Name:  "SW-DP",
		Wire:  "swd",
		DPv:   2,
		Cores: "Cortex-M7/M33",
	})

	registerPort(arm, 0xBB11, DebugPort{
		Name:  "SW-DP",
		Wire:  "swd",
		DPv:   1,
		Cores: "Cortex-M0/M0+",
	})

	registerPort(arm, 0xBC11, DebugPort{
		Name:  "SW-DP (multidrop)",
		Wire:  "swd",
		DPv:   2,
		Cores: "Cortex-M0/M0+",
	})

	registerPort(arm, 0xBE12, DebugPort{
		Name:  "SW-DP",
		Wire:  "swd",
		DPv:   2,
		Cores: "Cortex-M33",
	})
}
