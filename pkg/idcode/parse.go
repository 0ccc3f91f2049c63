package idcode

import "fmt"

// ParseIDCode parses a raw 32-bit IDCODE into its component fields
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:        raw,
		Version:    uint8((raw >> 28) & 0xF),
		PartNumber: uint16((raw >> 12) & 0xFFFF),
		Designer:   uint16((raw >> 1) & 0x7FF),
		Present:    (raw & 0x1) == 0x1,
	}
}

// Bank returns the JEP106 bank number (continuation count plus one).
func (id IDCode) Bank() int {
	return int(id.Designer>>7) + 1
}

func (id IDCode) String() string {
	return fmt.Sprintf("0x%08X (rev %d, part 0x%04X, designer 0x%03X)", id.Raw, id.Version, id.PartNumber, id.Designer)
}
