package stlink

import (
	"encoding/binary"
)

// Reads and writes differ in shape: read data comes back in the response to
// the header, write data always follows the header as a separate transfer.

// memoryHeader frames a memory command: address at byte 2, byte length at
// byte 6, both little endian.
func (s *Session) memoryHeader(sub byte, addr uint32, length uint16) {
	s.clearCommandBuffer()
	s.tx[0] = CmdDebug
	s.tx[1] = sub
	binary.LittleEndian.PutUint32(s.tx[2:6], addr)
	binary.LittleEndian.PutUint16(s.tx[6:8], length)
}

// ReadMem8 reads length bytes starting at addr into out.
func (s *Session) ReadMem8(addr uint32, length uint16, out []byte) error {
	if length == 0 || int(length) > len(out) {
		return configErrorf("read8 of %d bytes into %d byte buffer", length, len(out))
	}

	// The probe answers a single byte read with two bytes.
	readLen := int(length)
	if readLen == 1 {
		readLen++
	}
	if readLen > RxBufferSize {
		return configErrorf("read8 of %d bytes exceeds %d byte buffer", length, RxBufferSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memoryHeader(DebugReadMem8Bit, addr, length)
	if err := s.transact(s.tx[:CmdSize], readLen); err != nil {
		return err
	}

	copy(out, s.rx[:length])
	return nil
}

// WriteMem8 writes length bytes from in starting at addr.
func (s *Session) WriteMem8(addr uint32, length uint16, in []byte) error {
	if length == 0 || int(length) > len(in) {
		return configErrorf("write8 of %d bytes from %d byte buffer", length, len(in))
	}
	if int(length) > TxBufferSize {
		return configErrorf("write8 of %d bytes exceeds %d byte buffer", length, TxBufferSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memoryHeader(DebugWriteMem8Bit, addr, length)
	if err := s.transact(s.tx[:CmdSize], 0); err != nil {
		return err
	}

	return s.transact(in[:length], 0)
}

// ReadMem32 reads words 32-bit words starting at addr into out.
func (s *Session) ReadMem32(addr uint32, words uint16, out []uint32) error {
	if words == 0 || int(words) > len(out) {
		return configErrorf("read32 of %d words into %d word buffer", words, len(out))
	}

	length := int(words) * 4
	if length > RxBufferSize {
		return configErrorf("read32 of %d words exceeds %d byte buffer", words, RxBufferSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memoryHeader(DebugReadMem32Bit, addr, uint16(length))
	if err := s.transact(s.tx[:CmdSize], length); err != nil {
		return err
	}

	for i := 0; i < int(words); i++ {
		out[i] = binary.LittleEndian.Uint32(s.rx[i*4:])
	}
	return nil
}

// WriteMem32 writes words 32-bit words from in starting at addr.
func (s *Session) WriteMem32(addr uint32, words uint16, in []uint32) error {
	if words == 0 || int(words) > len(in) {
		return configErrorf("write32 of %d words from %d word buffer", words, len(in))
	}

	length := int(words) * 4
	if length > TxBufferSize {
		return configErrorf("write32 of %d words exceeds %d byte buffer", words, TxBufferSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memoryHeader(DebugWriteMem32Bit, addr, uint16(length))
	if err := s.transact(s.tx[:CmdSize], 0); err != nil {
		return err
	}

	// The header is on the wire, so the transmit buffer can carry the payload.
	for i := 0; i < int(words); i++ {
		binary.LittleEndian.PutUint32(s.tx[i*4:], in[i])
	}
	return s.transact(s.tx[:length], 0)
}
