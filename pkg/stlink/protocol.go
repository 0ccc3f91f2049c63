package stlink

import (
	"encoding/binary"
	"fmt"
)

// Command families (byte 0 of every frame)
const (
	CmdGetVersion     = 0xF1
	CmdDebug          = 0xF2
	CmdDFU            = 0xF3
	CmdSWIM           = 0xF4
	CmdGetCurrentMode = 0xF5
)

// Debug sub-commands (byte 1 after CmdDebug)
const (
	DebugGetStatus     = 0x01
	DebugForceDebug    = 0x02
	DebugResetSys      = 0x03
	DebugReadAllRegs   = 0x04
	DebugReadReg       = 0x05
	DebugWriteReg      = 0x06
	DebugReadMem32Bit  = 0x07
	DebugWriteMem32Bit = 0x08
	DebugRunCore       = 0x09
	DebugStepCore      = 0x0A
	DebugReadMem8Bit   = 0x0C
	DebugWriteMem8Bit  = 0x0D
	DebugEnter         = 0x20
	DebugExit          = 0x21
	DebugReadCoreID    = 0x22

	// Arguments of DebugEnter
	DebugEnterJTAG = 0x00
	DebugEnterSWD  = 0xA3
)

// SWIM and DFU sub-commands
const (
	SWIMEnter = 0x00
	SWIMExit  = 0x01
	DFUExit   = 0x07
)

// Raw mode codes reported by GET_CURRENT_MODE
const (
	DeviceModeDFU   = 0x00
	DeviceModeMass  = 0x01
	DeviceModeDebug = 0x02
	DeviceModeSWIM  = 0x03
)

// Core status codes reported by DEBUG_GETSTATUS
const (
	CoreRunning = 0x80
	CoreHalted  = 0x81
)

// Frame and response sizes. The wire carries no length field, so every
// response size is fixed by the command that produced it.
const (
	CmdSize           = 16
	TxBufferSize      = 4 * 128
	RxBufferSize      = 4 * 128
	RegisterBlockSize = 84
	versionRespSize   = 6
	modeRespSize      = 2
	ackRespSize       = 2
	statusRespSize    = 2
	coreIDRespSize    = 4
	regRespSize       = 4
)

// Mode is the probe's operating personality.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeDFU
	ModeMass
	ModeDebugJTAG
	ModeDebugSWD
	ModeDebugSWIM
)

func (m Mode) String() string {
	switch m {
	case ModeDFU:
		return "dfu"
	case ModeMass:
		return "mass-storage"
	case ModeDebugJTAG:
		return "debug-jtag"
	case ModeDebugSWD:
		return "debug-swd"
	case ModeDebugSWIM:
		return "debug-swim"
	default:
		return "unknown"
	}
}

// modeCodes maps GET_CURRENT_MODE codes to the mode family that has to be
// left. Code 2 only says "debug"; JTAG and SWD share the exit frame so the SWD
// entry stands for both.
var modeCodes = map[byte]Mode{
	DeviceModeDFU:   ModeDFU,
	DeviceModeMass:  ModeMass,
	DeviceModeDebug: ModeDebugSWD,
	DeviceModeSWIM:  ModeDebugSWIM,
}

// ModeFromCode maps a raw mode code to its Mode; unknown codes map to
// ModeUnknown.
func ModeFromCode(code byte) Mode {
	if m, ok := modeCodes[code]; ok {
		return m
	}
	return ModeUnknown
}

// modeFrame holds the frame prefixes used to enter and leave a mode. A nil
// slice means the transition is not supported.
type modeFrame struct {
	enter []byte
	leave []byte
}

var modeFrames = map[Mode]modeFrame{
	ModeDebugJTAG: {
		enter: []byte{CmdDebug, DebugEnter, DebugEnterJTAG},
		leave: []byte{CmdDebug, DebugExit},
	},
	ModeDebugSWD: {
		enter: []byte{CmdDebug, DebugEnter, DebugEnterSWD},
		leave: []byte{CmdDebug, DebugExit},
	},
	ModeDebugSWIM: {
		enter: []byte{CmdSWIM, SWIMEnter},
		leave: []byte{CmdSWIM, SWIMExit},
	},
	ModeDFU: {
		leave: []byte{CmdDFU, DFUExit},
	},
}

// TransportKind selects the debug wire protocol between probe and target.
type TransportKind string

const (
	TransportSWD  TransportKind = "swd"
	TransportJTAG TransportKind = "jtag"
	TransportSWIM TransportKind = "swim"
)

// transportModes lists the transports a debug session can be brought up on.
var transportModes = map[TransportKind]Mode{
	TransportSWD:  ModeDebugSWD,
	TransportJTAG: ModeDebugJTAG,
}

// ParseTransportKind accepts the transport names used on the command line.
func ParseTransportKind(s string) (TransportKind, error) {
	switch TransportKind(s) {
	case TransportSWD, TransportJTAG, TransportSWIM:
		return TransportKind(s), nil
	}
	return "", configErrorf("unknown transport %q", s)
}

// RunState is the target core's execution state.
type RunState int

const (
	StateUnknown RunState = iota
	StateRunning
	StateHalted
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

func decodeRunState(status byte) RunState {
	switch status {
	case CoreRunning:
		return StateRunning
	case CoreHalted:
		return StateHalted
	default:
		return StateUnknown
	}
}

// Version is the firmware version triple reported by GET_VERSION.
type Version struct {
	Probe int
	JTAG  int
	SWIM  int

	// IDs the probe advertises about itself.
	VendorID  uint16
	ProductID uint16
}

func (v Version) String() string {
	return fmt.Sprintf("V%dJ%dS%d (%04X:%04X)", v.Probe, v.JTAG, v.SWIM, v.VendorID, v.ProductID)
}

// DecodeVersion parses a GET_VERSION response. The version word is big endian;
// the IDs that follow it are little endian.
func DecodeVersion(resp []byte) (Version, error) {
	if len(resp) < versionRespSize {
		return Version{}, fmt.Errorf("version response too short: %d bytes", len(resp))
	}
	v := binary.BigEndian.Uint16(resp[0:2])
	return Version{
		Probe:     int(v>>12) & 0x0f,
		JTAG:      int(v>>6) & 0x3f,
		SWIM:      int(v) & 0x3f,
		VendorID:  binary.LittleEndian.Uint16(resp[2:4]),
		ProductID: binary.LittleEndian.Uint16(resp[4:6]),
	}, nil
}

// supports reports whether the firmware can drive the given transport.
func (v Version) supports(kind TransportKind) bool {
	switch kind {
	case TransportSWD, TransportJTAG:
		return v.JTAG != 0
	case TransportSWIM:
		return v.SWIM != 0
	default:
		return false
	}
}
