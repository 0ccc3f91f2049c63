package stlink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport replays canned responses and records every call.
type scriptedTransport struct {
	writes    [][]byte
	reads     []int
	responses [][]byte
	failWrite int // 1-based index of the write to fail, 0 for none
	closes    int
}

func (t *scriptedTransport) Write(_ uint8, data []byte, _ time.Duration) (int, error) {
	t.writes = append(t.writes, append([]byte(nil), data...))
	if t.failWrite == len(t.writes) {
		return 0, errors.New("pipe error")
	}
	return len(data), nil
}

func (t *scriptedTransport) Read(_ uint8, data []byte, _ time.Duration) (int, error) {
	t.reads = append(t.reads, len(data))
	if len(t.responses) == 0 {
		return 0, errors.New("timeout")
	}
	resp := t.responses[0]
	t.responses = t.responses[1:]
	return copy(data, resp), nil
}

func (t *scriptedTransport) Close() error {
	t.closes++
	return nil
}

// openSim brings a session up on sim and forgets the bring-up traffic.
func openSim(t *testing.T, sim *SimProbe, kind TransportKind, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(sim, kind, VendorIDST, ProductIDSTLinkV2, opts...)
	require.NoError(t, err)
	sim.ResetTransfers()
	return s
}

func outFrames(transfers []Transfer) [][]byte {
	var out [][]byte
	for _, tr := range transfers {
		if tr.Dir == DirOut {
			out = append(out, tr.Data)
		}
	}
	return out
}

func countDir(transfers []Transfer, dir Direction) int {
	n := 0
	for _, tr := range transfers {
		if tr.Dir == dir {
			n++
		}
	}
	return n
}

func TestRegisterWriteReadRoundTrip(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	for i := 0; i < NumRegisters; i++ {
		want := 0xA5000000 | uint32(i)<<8 | uint32(i)
		require.NoError(t, s.WriteRegister(i, want))

		got, err := s.ReadRegister(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "register %s", RegisterNames[i])
	}
}

func TestRegisterFrames(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	require.NoError(t, s.WriteRegister(15, 0x08000131))
	frame := outFrames(sim.Transfers())[0]
	assert.Equal(t, []byte{CmdDebug, DebugWriteReg, 15, 0x31, 0x01, 0x00, 0x08}, frame[:7])
	assert.Equal(t, make([]byte, CmdSize-7), frame[7:])

	sim.ResetTransfers()
	_, err := s.ReadRegister(2)
	require.NoError(t, err)
	tr := sim.Transfers()
	require.Len(t, tr, 2)
	assert.Equal(t, []byte{CmdDebug, DebugReadReg, 2}, tr[0].Data[:3])
	assert.Len(t, tr[1].Data, regRespSize)
}

func TestRegisterIndexOutOfRange(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	_, err := s.ReadRegister(NumRegisters)
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, s.WriteRegister(-1, 0), ErrConfig)
	assert.Empty(t, sim.Transfers())
}

func TestReadRegisters(t *testing.T) {
	sim := NewSimProbe()
	for i := range sim.Regs {
		sim.Regs[i] = uint32(i) * 0x11111111
	}
	s := openSim(t, sim, TransportSWD)

	block, err := s.ReadRegisters()
	require.NoError(t, err)

	tr := sim.Transfers()
	require.Len(t, tr, 2)
	assert.Len(t, tr[1].Data, RegisterBlockSize)
	assert.Equal(t, sim.Regs, block.Registers())
	assert.Equal(t, uint32(0x11111110), block.Register(16))
}

func TestReadMem8SingleByteIsPadded(t *testing.T) {
	sim := NewSimProbe()
	sim.PadByte = 0xEE
	sim.LoadMemory(0x20000000, []byte{0x5A})
	s := openSim(t, sim, TransportSWD)

	out := []byte{0x00, 0x77}
	require.NoError(t, s.ReadMem8(0x20000000, 1, out))

	assert.Equal(t, []byte{0x5A, 0x77}, out)

	tr := sim.Transfers()
	require.Equal(t, 1, countDir(tr, DirIn))
	assert.Len(t, tr[1].Data, 2)
	assert.Equal(t, []byte{0x5A, 0xEE}, tr[1].Data)
}

func TestReadMem8WithoutPadDesyncs(t *testing.T) {
	// A probe that did not pad would leave the session reading a short
	// response; the session must surface that as a transport failure.
	tr := &scriptedTransport{responses: [][]byte{{0x5A}}}
	s := &Session{transport: tr, timeout: DefaultTimeout, log: slog.New(slog.DiscardHandler)}

	err := s.ReadMem8(0x20000000, 1, make([]byte, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Want)
	assert.Equal(t, 1, te.Got)
	assert.Equal(t, []int{2}, tr.reads)
}

func TestMemoryHeaderFields(t *testing.T) {
	const addr = 0x20001234

	tests := []struct {
		name    string
		sub     byte
		wantLen uint16
		do      func(s *Session) error
	}{
		{"read8", DebugReadMem8Bit, 7, func(s *Session) error { return s.ReadMem8(addr, 7, make([]byte, 7)) }},
		{"write8", DebugWriteMem8Bit, 5, func(s *Session) error { return s.WriteMem8(addr, 5, make([]byte, 5)) }},
		{"read32", DebugReadMem32Bit, 12, func(s *Session) error { return s.ReadMem32(addr, 3, make([]uint32, 3)) }},
		{"write32", DebugWriteMem32Bit, 8, func(s *Session) error { return s.WriteMem32(addr, 2, make([]uint32, 2)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimProbe()
			s := openSim(t, sim, TransportSWD)

			require.NoError(t, tt.do(s))

			header := outFrames(sim.Transfers())[0]
			require.Len(t, header, CmdSize)
			assert.Equal(t, byte(CmdDebug), header[0])
			assert.Equal(t, tt.sub, header[1])
			assert.Equal(t, []byte{0x34, 0x12, 0x00, 0x20}, header[2:6])
			assert.Equal(t, binary.LittleEndian.AppendUint16(nil, tt.wantLen), header[6:8])
			assert.Equal(t, make([]byte, CmdSize-8), header[8:])
		})
	}
}

func TestWritesUseTwoTransfers(t *testing.T) {
	t.Run("write8", func(t *testing.T) {
		sim := NewSimProbe()
		s := openSim(t, sim, TransportSWD)

		payload := []byte{1, 2, 3, 4, 5, 6, 7}
		require.NoError(t, s.WriteMem8(0x20000000, uint16(len(payload)), payload))

		tr := sim.Transfers()
		require.Len(t, tr, 2)
		assert.Equal(t, 0, countDir(tr, DirIn))
		assert.Len(t, tr[0].Data, CmdSize)
		assert.Equal(t, payload, tr[1].Data)
		assert.Equal(t, payload, sim.PeekMemory(0x20000000, len(payload)))
	})

	t.Run("write32", func(t *testing.T) {
		sim := NewSimProbe()
		s := openSim(t, sim, TransportSWD)

		words := []uint32{0xDEADBEEF, 0x01020304}
		require.NoError(t, s.WriteMem32(0x20000100, 2, words))

		tr := sim.Transfers()
		require.Len(t, tr, 2)
		assert.Equal(t, 0, countDir(tr, DirIn))
		assert.Len(t, tr[0].Data, CmdSize)
		assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE, 0x04, 0x03, 0x02, 0x01}, tr[1].Data)
	})

	t.Run("write8 uses only the requested length", func(t *testing.T) {
		sim := NewSimProbe()
		s := openSim(t, sim, TransportSWD)

		require.NoError(t, s.WriteMem8(0x20000000, 2, []byte{0xAA, 0xBB, 0xCC}))
		assert.Equal(t, []byte{0xAA, 0xBB}, sim.Transfers()[1].Data)
	})
}

func TestMem32RoundTrip(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportJTAG)

	in := []uint32{0x11223344, 0x55667788, 0x99AABBCC, 0xDDEEFF00}
	require.NoError(t, s.WriteMem32(0x20000000, 4, in))

	out := make([]uint32, 4)
	require.NoError(t, s.ReadMem32(0x20000000, 4, out))
	assert.Equal(t, in, out)

	bytesOut := make([]byte, 3)
	require.NoError(t, s.ReadMem8(0x20000001, 3, bytesOut))
	assert.Equal(t, []byte{0x33, 0x22, 0x11}, bytesOut)
}

func TestMemoryRequestValidation(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	assert.ErrorIs(t, s.ReadMem8(0, 0, make([]byte, 4)), ErrConfig)
	assert.ErrorIs(t, s.ReadMem8(0, 8, make([]byte, 4)), ErrConfig)
	assert.ErrorIs(t, s.ReadMem8(0, RxBufferSize+1, make([]byte, RxBufferSize+1)), ErrConfig)
	assert.ErrorIs(t, s.WriteMem8(0, 3, []byte{1}), ErrConfig)
	assert.ErrorIs(t, s.ReadMem32(0, RxBufferSize/4+1, make([]uint32, RxBufferSize)), ErrConfig)
	assert.ErrorIs(t, s.WriteMem32(0, 2, []uint32{1}), ErrConfig)
	assert.Empty(t, sim.Transfers())
}

func TestInitModeFromDebug(t *testing.T) {
	sim := NewSimProbe()
	sim.ModeCode = DeviceModeDebug

	s, err := NewSession(sim, TransportSWD, VendorIDST, ProductIDSTLinkV2)
	require.NoError(t, err)
	require.NotNil(t, s)

	frames := outFrames(sim.Transfers())
	require.Len(t, frames, 6)

	prefixes := [][]byte{
		{CmdGetVersion},
		{CmdGetCurrentMode},
		{CmdDebug, DebugExit},
		{CmdGetCurrentMode},
		{CmdDebug, DebugEnter, DebugEnterSWD},
		{CmdGetCurrentMode},
	}
	for i, want := range prefixes {
		assert.Equal(t, want, frames[i][:len(want)], "frame %d", i)
		assert.Equal(t, make([]byte, CmdSize-len(want)), frames[i][len(want):], "frame %d tail", i)
	}
	assert.Equal(t, byte(DeviceModeDebug), sim.ModeCode)
}

func TestInitModeFromEachMode(t *testing.T) {
	tests := []struct {
		name      string
		code      byte
		kind      TransportKind
		wantLeave []byte
		wantEnter []byte
	}{
		{"dfu to jtag", DeviceModeDFU, TransportJTAG, []byte{CmdDFU, DFUExit}, []byte{CmdDebug, DebugEnter, DebugEnterJTAG}},
		{"swim to swd", DeviceModeSWIM, TransportSWD, []byte{CmdSWIM, SWIMExit}, []byte{CmdDebug, DebugEnter, DebugEnterSWD}},
		{"mass to swd", DeviceModeMass, TransportSWD, nil, []byte{CmdDebug, DebugEnter, DebugEnterSWD}},
		{"unknown to swd", 0x42, TransportSWD, nil, []byte{CmdDebug, DebugEnter, DebugEnterSWD}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimProbe()
			sim.ModeCode = tt.code

			_, err := NewSession(sim, tt.kind, VendorIDST, ProductIDSTLinkV2)
			require.NoError(t, err)

			frames := outFrames(sim.Transfers())
			want := [][]byte{{CmdGetVersion}, {CmdGetCurrentMode}}
			if tt.wantLeave != nil {
				want = append(want, tt.wantLeave)
			}
			want = append(want, []byte{CmdGetCurrentMode}, tt.wantEnter, []byte{CmdGetCurrentMode})

			require.Len(t, frames, len(want))
			for i, w := range want {
				assert.Equal(t, w, frames[i][:len(w)], "frame %d", i)
			}
		})
	}
}

func TestEnterLeaveUnsupportedModes(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	assert.ErrorIs(t, s.EnterMode(ModeDFU), ErrConfig)
	assert.ErrorIs(t, s.EnterMode(ModeMass), ErrConfig)
	assert.ErrorIs(t, s.EnterMode(ModeUnknown), ErrConfig)
	assert.ErrorIs(t, s.LeaveMode(ModeMass), ErrConfig)
	assert.Empty(t, sim.Transfers())

	require.NoError(t, s.LeaveMode(ModeDebugSWD))
	require.NoError(t, s.EnterMode(ModeDebugSWIM))
	code, err := s.CurrentMode()
	require.NoError(t, err)
	assert.Equal(t, ModeDebugSWIM, ModeFromCode(code))

	frames := outFrames(sim.Transfers())
	assert.Equal(t, []byte{CmdSWIM, SWIMEnter}, frames[1][:2])
	assert.Equal(t, 1, countDir(sim.Transfers(), DirIn))
}

func TestOpenRejectsSWIMTransport(t *testing.T) {
	sim := NewSimProbe()

	_, err := NewSession(sim, TransportSWIM, VendorIDST, ProductIDSTLinkV2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, 1, sim.Closes())
}

func TestOpenRejectsUnsupportedFirmware(t *testing.T) {
	sim := NewSimProbe()
	sim.VersionWord = VersionWord(2, 0, 7)

	_, err := NewSession(sim, TransportSWD, VendorIDST, ProductIDSTLinkV2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, 1, sim.Closes())
	assert.Len(t, sim.Transfers(), 2, "only the version query should reach the probe")
}

func TestOpenVersionFailureReleasesDevice(t *testing.T) {
	sim := NewSimProbe()
	sim.OnTransfer = func(dir Direction, _ uint8, _ []byte) error {
		if dir == DirOut {
			return errors.New("LIBUSB_ERROR_PIPE")
		}
		return nil
	}

	s, err := Open(TransportSWD, VendorIDST, ProductIDSTLinkV2,
		WithOpener(func(vid, pid uint16) (Transport, error) { return sim, nil }))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, sim.Closes())
}

func TestOpenInitFailureReleasesDevice(t *testing.T) {
	sim := NewSimProbe()
	writes := 0
	sim.OnTransfer = func(dir Direction, _ uint8, _ []byte) error {
		if dir == DirOut {
			writes++
			if writes == 3 { // leave DFU
				return errors.New("LIBUSB_ERROR_TIMEOUT")
			}
		}
		return nil
	}

	_, err := NewSession(sim, TransportSWD, VendorIDST, ProductIDSTLinkV2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, sim.Closes())
}

func TestOpenerErrorIsTransportFailure(t *testing.T) {
	_, err := Open(TransportSWD, VendorIDST, ProductIDSTLinkV2,
		WithOpener(func(vid, pid uint16) (Transport, error) { return nil, errors.New("no device") }))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestOpenVIDPIDMismatchIsNotFatal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sim := NewSimProbe()
	sim.ProductID = ProductIDV21

	s, err := NewSession(sim, TransportSWD, VendorIDST, ProductIDSTLinkV2, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, uint16(ProductIDV21), s.Version().ProductID)
	assert.Contains(t, buf.String(), "vid/pid are not identical")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestVersionDecodedAtOpen(t *testing.T) {
	sim := NewSimProbe()
	sim.VersionWord = VersionWord(2, 17, 4)
	s := openSim(t, sim, TransportSWD)

	v := s.Version()
	assert.Equal(t, 2, v.Probe)
	assert.Equal(t, 17, v.JTAG)
	assert.Equal(t, 4, v.SWIM)
	assert.Equal(t, uint16(VendorIDST), v.VendorID)
	assert.Equal(t, TransportSWD, s.Transport())
}

func TestStateDecoding(t *testing.T) {
	tests := []struct {
		name string
		resp []byte
		want RunState
	}{
		{"running", []byte{0x80, 0x00}, StateRunning},
		{"halted", []byte{0x81, 0x00}, StateHalted},
		{"zero", []byte{0x00, 0x00}, StateUnknown},
		{"other", []byte{0x42, 0x81}, StateUnknown},
		{"short", []byte{0x80}, StateUnknown},
		{"transport failure", nil, StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &scriptedTransport{}
			if tt.resp != nil {
				tr.responses = [][]byte{tt.resp}
			}
			s := &Session{transport: tr, timeout: DefaultTimeout, log: slog.New(slog.DiscardHandler)}

			assert.Equal(t, tt.want, s.State())
			require.Len(t, tr.writes, 1)
			assert.Equal(t, []byte{CmdDebug, DebugGetStatus}, tr.writes[0][:2])
		})
	}
}

func TestStateWriteFailureIsUnknown(t *testing.T) {
	tr := &scriptedTransport{failWrite: 1}
	s := &Session{transport: tr, timeout: DefaultTimeout, log: slog.New(slog.DiscardHandler)}
	assert.Equal(t, StateUnknown, s.State())
	assert.Empty(t, tr.reads)
}

func TestTargetControl(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	assert.Equal(t, StateRunning, s.State())

	require.NoError(t, s.Halt())
	assert.Equal(t, StateHalted, s.State())

	sim.Regs[15] = 0x08000100
	require.NoError(t, s.Step())
	pc, err := s.ReadRegister(15)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08000102), pc)

	require.NoError(t, s.Run())
	assert.Equal(t, StateRunning, s.State())

	require.NoError(t, s.Reset())
	assert.Equal(t, 1, sim.Resets())

	subs := []byte{}
	for _, f := range outFrames(sim.Transfers()) {
		subs = append(subs, f[1])
	}
	assert.Equal(t, []byte{
		DebugGetStatus, DebugForceDebug, DebugGetStatus, DebugStepCore, DebugReadReg,
		DebugRunCore, DebugGetStatus, DebugResetSys,
	}, subs)
}

func TestControlFailurePropagates(t *testing.T) {
	tr := &scriptedTransport{}
	s := &Session{transport: tr, timeout: DefaultTimeout, log: slog.New(slog.DiscardHandler)}

	for name, op := range map[string]func() error{"reset": s.Reset, "run": s.Run, "halt": s.Halt, "step": s.Step} {
		err := op()
		assert.ErrorIs(t, err, ErrTransport, name)
	}
	for _, want := range tr.reads {
		assert.Equal(t, ackRespSize, want)
	}
}

func TestIDCode(t *testing.T) {
	sim := NewSimProbe()
	sim.CoreID = 0x2BA01477
	s := openSim(t, sim, TransportSWD)

	id, err := s.IDCode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2BA01477), id)
	assert.Equal(t, []byte{CmdDebug, DebugReadCoreID}, sim.Transfers()[0].Data[:2])
}

func TestCommandBufferIsClearedBetweenCalls(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	require.NoError(t, s.WriteMem32(0x20000000, 4, []uint32{1, 2, 3, 4}))
	require.NoError(t, s.Halt())

	frames := outFrames(sim.Transfers())
	halt := frames[len(frames)-1]
	assert.Equal(t, []byte{CmdDebug, DebugForceDebug}, halt[:2])
	assert.Equal(t, make([]byte, CmdSize-2), halt[2:])
}

func TestCloseLeavesDebugModeOnce(t *testing.T) {
	sim := NewSimProbe()
	s := openSim(t, sim, TransportSWD)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, sim.Closes())

	frames := outFrames(sim.Transfers())
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{CmdGetCurrentMode}, frames[0][:1])
	assert.Equal(t, []byte{CmdDebug, DebugExit}, frames[1][:2])

	_, err := s.IDCode()
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, StateUnknown, s.State())
}

func TestShortWriteIsTransportFailure(t *testing.T) {
	tr := &shortWriter{}
	s := &Session{transport: tr, timeout: DefaultTimeout, log: slog.New(slog.DiscardHandler)}

	err := s.Halt()
	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
	assert.Equal(t, uint8(TxEndpoint), te.Endpoint)
	assert.Equal(t, CmdSize, te.Want)
	assert.Equal(t, CmdSize-1, te.Got)
}

type shortWriter struct{ scriptedTransport }

func (w *shortWriter) Write(_ uint8, data []byte, _ time.Duration) (int, error) {
	return len(data) - 1, nil
}
