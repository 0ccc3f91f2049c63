package stlink

import (
	"encoding/binary"
	"fmt"
)

// NumRegisters is the number of 32-bit words in the register block.
const NumRegisters = RegisterBlockSize / 4

// RegisterNames lists the registers in READALLREGS order; the index is also
// the register number accepted by ReadRegister and WriteRegister.
var RegisterNames = [NumRegisters]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
	"xpsr", "msp", "psp", "rw", "rw2",
}

// RegisterBlock is the raw READALLREGS response.
type RegisterBlock [RegisterBlockSize]byte

// Register returns register n decoded from the block.
func (b *RegisterBlock) Register(n int) uint32 {
	return binary.LittleEndian.Uint32(b[n*4 : n*4+4])
}

// Registers decodes every register in the block.
func (b *RegisterBlock) Registers() [NumRegisters]uint32 {
	var regs [NumRegisters]uint32
	for i := range regs {
		regs[i] = b.Register(i)
	}
	return regs
}

// RegisterIndex resolves a register name to its number.
func RegisterIndex(name string) (int, error) {
	for i, n := range RegisterNames {
		if n == name {
			return i, nil
		}
	}
	return 0, configErrorf("unknown register %q", name)
}

func checkRegister(n int) error {
	if n < 0 || n >= NumRegisters {
		return configErrorf("register %d out of range [0, %d)", n, NumRegisters)
	}
	return nil
}

// ReadRegisters reads the whole register bank in one transfer.
func (s *Session) ReadRegisters() (RegisterBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var block RegisterBlock
	if err := s.command(RegisterBlockSize, CmdDebug, DebugReadAllRegs); err != nil {
		return block, err
	}
	copy(block[:], s.rx[:RegisterBlockSize])
	return block, nil
}

// ReadRegister reads a single core register.
func (s *Session) ReadRegister(n int) (uint32, error) {
	if err := checkRegister(n); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.command(regRespSize, CmdDebug, DebugReadReg, byte(n)); err != nil {
		return 0, fmt.Errorf("read register %s: %w", RegisterNames[n], err)
	}
	return binary.LittleEndian.Uint32(s.rx[:regRespSize]), nil
}

// WriteRegister writes a single core register.
func (s *Session) WriteRegister(n int, value uint32) error {
	if err := checkRegister(n); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearCommandBuffer()
	s.tx[0] = CmdDebug
	s.tx[1] = DebugWriteReg
	s.tx[2] = byte(n)
	binary.LittleEndian.PutUint32(s.tx[3:7], value)

	if err := s.transact(s.tx[:CmdSize], ackRespSize); err != nil {
		return fmt.Errorf("write register %s: %w", RegisterNames[n], err)
	}
	return nil
}
