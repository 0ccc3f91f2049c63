package deviceinfo

// STMicroelectronics DBGMCU DEV_ID entries
func init() {
	// STM32F0 series
	registerMCU(MCU{DevID: 0x440, Name: "STM32F05x", Family: "STM32F0", Core: "Cortex-M0", FlashKiB: 64})
	registerMCU(MCU{DevID: 0x444, Name: "STM32F03x", Family: "STM32F0", Core: "Cortex-M0", FlashKiB: 32})
	registerMCU(MCU{DevID: 0x448, Name: "STM32F07x", Family: "STM32F0", Core: "Cortex-M0", FlashKiB: 128})

	// STM32F1 series
	registerMCU(MCU{DevID: 0x410, Name: "STM32F10x (Medium-density)", Family: "STM32F1", Core: "Cortex-M3", FlashKiB: 128})
	registerMCU(MCU{DevID: 0x412, Name: "STM32F10x (Low-density)", Family: "STM32F1", Core: "Cortex-M3", FlashKiB: 32})
	registerMCU(MCU{DevID: 0x414, Name: "STM32F10x (High-density)", Family: "STM32F1", Core: "Cortex-M3", FlashKiB: 512})
	registerMCU(MCU{DevID: 0x418, Name: "STM32F105/107 (Connectivity line)", Family: "STM32F1", Core: "Cortex-M3", FlashKiB: 256})
	registerMCU(MCU{DevID: 0x420, Name: "STM32F100 (Value line)", Family: "STM32F1", Core: "Cortex-M3", FlashKiB: 128})

	// STM32F2 series
	registerMCU(MCU{DevID: 0x411, Name: "STM32F2xx", Family: "STM32F2", Core: "Cortex-M3", FlashKiB: 1024})

	// STM32F3 series
	registerMCU(MCU{DevID: 0x422, Name: "STM32F30x/31x", Family: "STM32F3", Core: "Cortex-M4", FlashKiB: 256})

	// STM32F4 series
	registerMCU(MCU{DevID: 0x413, Name: "STM32F40x/41x", Family: "STM32F4", Core: "Cortex-M4", FlashKiB: 1024})
	registerMCU(MCU{DevID: 0x419, Name: "STM32F42x/43x", Family: "STM32F4", Core: "Cortex-M4", FlashKiB: 2048})

	// STM32F7 series
	registerMCU(MCU{DevID: 0x449, Name: "STM32F74x/75x", Family: "STM32F7", Core: "Cortex-M7", FlashKiB: 1024})

	// STM32L1 series
	registerMCU(MCU{DevID: 0x416, Name: "STM32L1xx (Cat.1)", Family: "STM32L1", Core: "Cortex-M3", FlashKiB: 128})
}
