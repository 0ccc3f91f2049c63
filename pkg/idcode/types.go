package idcode

// IDCode is a parsed ARM debug port IDCODE, as returned by READCOREID. The
// layout is the IEEE 1149.1 one, so JTAG-DP and SW-DP values parse alike.
type IDCode struct {
	Raw        uint32 // full IDCODE
	Version    uint8  // [31:28] revision
	PartNumber uint16 // [27:12]
	Designer   uint16 // [11:1] JEP106 continuation and identity code
	Present    bool   // bit 0 == 1
}

// Manufacturer represents a JEP106 designer entry
type Manufacturer struct {
	Code         uint16 // JEP106 code as it appears in [11:1]
	Name         string // "ARM Ltd"
	Abbreviation string // "ARM"
}
