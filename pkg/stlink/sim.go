package stlink

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Direction identifies which way a simulated transfer went.
type Direction uint8

const (
	DirOut Direction = iota
	DirIn
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// Transfer captures one bulk transfer seen by the simulator.
type Transfer struct {
	Dir      Direction
	Endpoint uint8
	Data     []byte
}

// TransferHook lets tests inject faults. Returning an error fails the
// transfer before the simulated probe sees it.
type TransferHook func(dir Direction, endpoint uint8, data []byte) error

// SimProbe is an in-memory probe implementing Transport. It decodes command
// frames the way the firmware does, keeps mode, core and memory state, and
// records every transfer for inspection within tests.
type SimProbe struct {
	VersionWord uint16
	VendorID    uint16
	ProductID   uint16

	ModeCode byte // raw GET_CURRENT_MODE value
	Status   byte // raw DEBUG_GETSTATUS value
	CoreID   uint32
	Regs     [NumRegisters]uint32

	// PadByte fills the second byte of a padded single-byte read.
	PadByte byte

	OnTransfer TransferHook

	mem       map[uint32]byte
	transfers []Transfer
	pending   []byte
	payload   *simPayload
	resets    int
	closes    int
}

type simPayload struct {
	addr   uint32
	length int
}

// VersionWord packs a version triple the way GET_VERSION reports it.
func VersionWord(probe, jtag, swim int) uint16 {
	return uint16(probe&0x0f)<<12 | uint16(jtag&0x3f)<<6 | uint16(swim&0x3f)
}

// NewSimProbe returns an ST-Link/V2 simulator sitting in DFU mode with a
// running Cortex-M3 attached.
func NewSimProbe() *SimProbe {
	return &SimProbe{
		VersionWord: VersionWord(2, 37, 7),
		VendorID:    VendorIDST,
		ProductID:   ProductIDSTLinkV2,
		ModeCode:    DeviceModeDFU,
		Status:      CoreRunning,
		CoreID:      0x1BA01477,
		mem:         make(map[uint32]byte),
	}
}

// Transfers returns a copy of every transfer recorded so far.
func (p *SimProbe) Transfers() []Transfer {
	out := make([]Transfer, len(p.transfers))
	for i, t := range p.transfers {
		out[i] = Transfer{Dir: t.Dir, Endpoint: t.Endpoint, Data: append([]byte(nil), t.Data...)}
	}
	return out
}

// ResetTransfers forgets recorded transfers.
func (p *SimProbe) ResetTransfers() {
	p.transfers = nil
}

// Resets reports how many RESETSYS commands were received.
func (p *SimProbe) Resets() int {
	return p.resets
}

// Closes reports how many times Close was called.
func (p *SimProbe) Closes() int {
	return p.closes
}

// LoadMemory places data in target memory at addr.
func (p *SimProbe) LoadMemory(addr uint32, data []byte) {
	for i, b := range data {
		p.mem[addr+uint32(i)] = b
	}
}

// PeekMemory returns n bytes of target memory starting at addr. Unwritten
// bytes read as zero.
func (p *SimProbe) PeekMemory(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = p.mem[addr+uint32(i)]
	}
	return out
}

func (p *SimProbe) Write(endpoint uint8, data []byte, _ time.Duration) (int, error) {
	p.transfers = append(p.transfers, Transfer{Dir: DirOut, Endpoint: endpoint, Data: append([]byte(nil), data...)})

	if p.OnTransfer != nil {
		if err := p.OnTransfer(DirOut, endpoint, data); err != nil {
			return 0, err
		}
	}
	if p.closes > 0 {
		return 0, fmt.Errorf("sim: device closed")
	}
	if endpoint != TxEndpoint {
		return 0, fmt.Errorf("sim: write to IN endpoint 0x%02X", endpoint)
	}

	if p.payload != nil {
		return p.acceptPayload(data)
	}

	if len(data) != CmdSize {
		return 0, fmt.Errorf("sim: command frame of %d bytes", len(data))
	}
	if err := p.execute(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *SimProbe) Read(endpoint uint8, data []byte, _ time.Duration) (int, error) {
	p.transfers = append(p.transfers, Transfer{Dir: DirIn, Endpoint: endpoint, Data: make([]byte, len(data))})

	if p.OnTransfer != nil {
		if err := p.OnTransfer(DirIn, endpoint, data); err != nil {
			return 0, err
		}
	}
	if p.closes > 0 {
		return 0, fmt.Errorf("sim: device closed")
	}
	if endpoint != RxEndpoint {
		return 0, fmt.Errorf("sim: read from OUT endpoint 0x%02X", endpoint)
	}
	if p.pending == nil {
		return 0, fmt.Errorf("sim: read timed out, no response pending")
	}

	resp := p.pending
	p.pending = nil
	if len(resp) > len(data) {
		n := copy(data, resp)
		return n, fmt.Errorf("sim: overflow, %d byte response into %d byte read", len(resp), len(data))
	}
	n := copy(data, resp)
	p.transfers[len(p.transfers)-1].Data = append([]byte(nil), data[:n]...)
	return n, nil
}

func (p *SimProbe) Close() error {
	p.closes++
	return nil
}

func (p *SimProbe) acceptPayload(data []byte) (int, error) {
	want := p.payload.length
	addr := p.payload.addr
	p.payload = nil
	if len(data) != want {
		return 0, fmt.Errorf("sim: payload of %d bytes, header announced %d", len(data), want)
	}
	p.LoadMemory(addr, data)
	return len(data), nil
}

func (p *SimProbe) ack() {
	p.pending = []byte{CoreRunning, 0x00}
}

// execute applies a 16-byte command frame.
func (p *SimProbe) execute(cmd []byte) error {
	p.pending = nil
	switch cmd[0] {
	case CmdGetVersion:
		resp := make([]byte, versionRespSize)
		binary.BigEndian.PutUint16(resp[0:2], p.VersionWord)
		binary.LittleEndian.PutUint16(resp[2:4], p.VendorID)
		binary.LittleEndian.PutUint16(resp[4:6], p.ProductID)
		p.pending = resp
	case CmdGetCurrentMode:
		p.pending = []byte{p.ModeCode, 0x00}
	case CmdDFU:
		if cmd[1] != DFUExit {
			return fmt.Errorf("sim: unknown DFU command 0x%02X", cmd[1])
		}
		p.ModeCode = DeviceModeMass
	case CmdSWIM:
		switch cmd[1] {
		case SWIMEnter:
			p.ModeCode = DeviceModeSWIM
		case SWIMExit:
			p.ModeCode = DeviceModeMass
		default:
			return fmt.Errorf("sim: unknown SWIM command 0x%02X", cmd[1])
		}
	case CmdDebug:
		return p.executeDebug(cmd)
	default:
		return fmt.Errorf("sim: unknown command 0x%02X", cmd[0])
	}
	return nil
}

func (p *SimProbe) executeDebug(cmd []byte) error {
	addr := binary.LittleEndian.Uint32(cmd[2:6])
	length := int(binary.LittleEndian.Uint16(cmd[6:8]))

	switch cmd[1] {
	case DebugEnter:
		if cmd[2] != DebugEnterJTAG && cmd[2] != DebugEnterSWD {
			return fmt.Errorf("sim: unknown debug entry 0x%02X", cmd[2])
		}
		p.ModeCode = DeviceModeDebug
	case DebugExit:
		p.ModeCode = DeviceModeMass
	case DebugReadCoreID:
		p.pending = binary.LittleEndian.AppendUint32(nil, p.CoreID)
	case DebugGetStatus:
		p.pending = []byte{p.Status, 0x00}
	case DebugForceDebug:
		p.Status = CoreHalted
		p.ack()
	case DebugRunCore:
		p.Status = CoreRunning
		p.ack()
	case DebugStepCore:
		p.Status = CoreHalted
		p.Regs[15] += 2
		p.ack()
	case DebugResetSys:
		p.resets++
		p.ack()
	case DebugReadAllRegs:
		resp := make([]byte, 0, RegisterBlockSize)
		for _, r := range p.Regs {
			resp = binary.LittleEndian.AppendUint32(resp, r)
		}
		p.pending = resp
	case DebugReadReg:
		n := int(cmd[2])
		if n >= NumRegisters {
			return fmt.Errorf("sim: register %d out of range", n)
		}
		p.pending = binary.LittleEndian.AppendUint32(nil, p.Regs[n])
	case DebugWriteReg:
		n := int(cmd[2])
		if n >= NumRegisters {
			return fmt.Errorf("sim: register %d out of range", n)
		}
		p.Regs[n] = binary.LittleEndian.Uint32(cmd[3:7])
		p.ack()
	case DebugReadMem8Bit:
		resp := p.PeekMemory(addr, length)
		if length == 1 {
			resp = append(resp, p.PadByte)
		}
		p.pending = resp
	case DebugReadMem32Bit:
		p.pending = p.PeekMemory(addr, length)
	case DebugWriteMem8Bit, DebugWriteMem32Bit:
		p.payload = &simPayload{addr: addr, length: length}
	default:
		return fmt.Errorf("sim: unknown debug command 0x%02X", cmd[1])
	}
	return nil
}
