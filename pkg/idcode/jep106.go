package idcode

import "fmt"

// DesignerARM is ARM Ltd's JEP106 code (bank 5, identity 0x3B).
const DesignerARM = 0x23B

// DesignerST is STMicroelectronics' JEP106 code.
const DesignerST = 0x020

// manufacturers holds the designers seen on Cortex-M debug ports and in
// ROM tables of parts an ST-Link is typically attached to.
var manufacturers = map[uint16]Manufacturer{
	0x00E:       {Code: 0x00E, Name: "Freescale (Motorola)", Abbreviation: "Freescale"},
	0x015:       {Code: 0x015, Name: "NXP (Philips)", Abbreviation: "NXP"},
	0x017:       {Code: 0x017, Name: "Texas Instruments", Abbreviation: "TI"},
	0x01F:       {Code: 0x01F, Name: "Atmel", Abbreviation: "Atmel"},
	DesignerST:  {Code: DesignerST, Name: "STMicroelectronics", Abbreviation: "STM"},
	0x034:       {Code: 0x034, Name: "Cypress", Abbreviation: "Cypress"},
	0x244:       {Code: 0x244, Name: "Nordic Semiconductor", Abbreviation: "Nordic"},
	DesignerARM: {Code: DesignerARM, Name: "ARM Ltd", Abbreviation: "ARM"},
}

// LookupManufacturer returns manufacturer info for a JEP106 code
func LookupManufacturer(code uint16) (Manufacturer, bool) {
	m, ok := manufacturers[code]
	if !ok {
		return Manufacturer{
			Code:         code,
			Name:         fmt.Sprintf("Unknown (0x%03X)", code),
			Abbreviation: "Unknown",
		}, false
	}
	return m, true
}
