package stlink

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	xlog "github.com/OpenTraceLab/OpenTraceSTLink/internal/log"
)

// Session drives one open probe. The transmit and receive buffers are owned
// by the session and reused by every operation, so calls are serialized on mu.
type Session struct {
	transport Transport
	kind      TransportKind
	vid       uint16
	pid       uint16
	version   Version

	tx [TxBufferSize]byte
	rx [RxBufferSize]byte

	timeout time.Duration
	log     *slog.Logger

	mu sync.Mutex
}

// Open opens the probe identified by vid:pid and brings up a debug session
// over the requested transport.
func Open(kind TransportKind, vid, pid uint16, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.Logger.Debug("opening probe", "vid", fmt.Sprintf("%04X", vid), "pid", fmt.Sprintf("%04X", pid), "transport", kind)

	t, err := cfg.Opener(vid, pid)
	if err != nil {
		cfg.Logger.Error("open failed", "err", err)
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return nil, err
	}

	return newSession(t, kind, vid, pid, cfg)
}

// NewSession brings up a debug session over an already open transport. The
// transport is closed if bring-up fails.
func NewSession(t Transport, kind TransportKind, vid, pid uint16, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newSession(t, kind, vid, pid, cfg)
}

func newSession(t Transport, kind TransportKind, vid, pid uint16, cfg Config) (*Session, error) {
	s := &Session{
		transport: t,
		kind:      kind,
		vid:       vid,
		pid:       pid,
		timeout:   cfg.Timeout,
		log:       cfg.Logger,
	}

	if err := s.queryVersion(); err != nil {
		s.log.Error("read version failed", "err", err)
		s.release()
		return nil, fmt.Errorf("read version failed: %w", err)
	}

	if vid != s.version.VendorID || pid != s.version.ProductID {
		s.log.Warn("vid/pid are not identical",
			"requested", fmt.Sprintf("%04X/%04X", vid, pid),
			"advertised", fmt.Sprintf("%04X/%04X", s.version.VendorID, s.version.ProductID))
	}

	if !s.version.supports(kind) {
		s.log.Error("mode (transport) not supported by device", "transport", kind, "version", s.version.String())
		s.release()
		return nil, configErrorf("transport %q not supported by probe firmware %s", kind, s.version)
	}

	if err := s.initMode(); err != nil {
		s.log.Error("init mode failed", "err", err)
		s.release()
		return nil, fmt.Errorf("init mode failed: %w", err)
	}

	return s, nil
}

// Version returns the firmware version read at open.
func (s *Session) Version() Version {
	return s.version
}

// Transport returns the configured debug transport.
func (s *Session) Transport() TransportKind {
	return s.kind
}

// Close leaves debug mode if the probe is still in it and releases the
// transport. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		return nil
	}

	if code, err := s.currentMode(); err != nil {
		s.log.Debug("mode query on close failed", "err", err)
	} else if mode := ModeFromCode(code); mode == ModeDebugSWD || mode == ModeDebugSWIM {
		if err := s.leaveMode(mode); err != nil {
			s.log.Debug("leave mode on close failed", "mode", mode, "err", err)
		}
	}

	return s.release()
}

func (s *Session) release() error {
	t := s.transport
	s.transport = nil
	if t == nil {
		return nil
	}
	return t.Close()
}

// clearCommandBuffer zeroes the command header so no field leaks from the
// previous operation.
func (s *Session) clearCommandBuffer() {
	clear(s.tx[:CmdSize])
}

// transact writes send and, when rxSize is positive, reads exactly rxSize
// bytes into the receive buffer.
func (s *Session) transact(send []byte, rxSize int) error {
	if s.transport == nil {
		return fmt.Errorf("%w: session closed", ErrTransport)
	}

	s.trace("tx", send)
	n, err := s.transport.Write(TxEndpoint, send, s.timeout)
	if err != nil || n != len(send) {
		return &TransferError{Op: "write", Endpoint: TxEndpoint, Want: len(send), Got: n, Err: err}
	}

	if rxSize <= 0 {
		return nil
	}

	n, err = s.transport.Read(RxEndpoint, s.rx[:rxSize], s.timeout)
	if err != nil || n != rxSize {
		return &TransferError{Op: "read", Endpoint: RxEndpoint, Want: rxSize, Got: n, Err: err}
	}
	s.trace("rx", s.rx[:rxSize])

	return nil
}

// command sends a header made of the given leading bytes and reads rxSize
// response bytes.
func (s *Session) command(rxSize int, header ...byte) error {
	s.clearCommandBuffer()
	copy(s.tx[:CmdSize], header)
	return s.transact(s.tx[:CmdSize], rxSize)
}

func (s *Session) trace(dir string, data []byte) {
	if s.log.Enabled(context.Background(), xlog.LevelTrace) {
		xlog.Trace(s.log, "frame", "dir", dir, "len", len(data), "data", hex.EncodeToString(data))
	}
}

func (s *Session) queryVersion() error {
	if err := s.command(versionRespSize, CmdGetVersion); err != nil {
		return err
	}

	v, err := DecodeVersion(s.rx[:versionRespSize])
	if err != nil {
		return err
	}
	s.version = v

	s.log.Debug("probe version",
		"stlink", v.Probe, "jtag", v.JTAG, "swim", v.SWIM,
		"vid", fmt.Sprintf("%04X", v.VendorID), "pid", fmt.Sprintf("%04X", v.ProductID))
	return nil
}

// CurrentMode returns the raw mode code reported by the probe. Use
// ModeFromCode to classify it.
func (s *Session) CurrentMode() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMode()
}

func (s *Session) currentMode() (byte, error) {
	if err := s.command(modeRespSize, CmdGetCurrentMode); err != nil {
		return 0, err
	}
	return s.rx[0], nil
}

// EnterMode switches the probe into a debug mode. DFU and mass-storage cannot
// be entered.
func (s *Session) EnterMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enterMode(mode)
}

func (s *Session) enterMode(mode Mode) error {
	frame := modeFrames[mode].enter
	if frame == nil {
		return configErrorf("cannot enter mode %s", mode)
	}
	return s.command(0, frame...)
}

// LeaveMode exits the given mode. Mass-storage cannot be left.
func (s *Session) LeaveMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaveMode(mode)
}

func (s *Session) leaveMode(mode Mode) error {
	frame := modeFrames[mode].leave
	if frame == nil {
		return configErrorf("cannot leave mode %s", mode)
	}
	return s.command(0, frame...)
}

// initMode leaves whatever mode the probe is in and enters the debug mode
// selected by the session transport.
func (s *Session) initMode() error {
	code, err := s.currentMode()
	if err != nil {
		return err
	}
	s.log.Debug("current mode", "code", code, "mode", ModeFromCode(code))

	// Mass storage has no exit command and does not block entering debug.
	if mode := ModeFromCode(code); mode != ModeUnknown && mode != ModeMass {
		if err := s.leaveMode(mode); err != nil {
			return err
		}
	}

	code, err = s.currentMode()
	if err != nil {
		return err
	}
	s.log.Debug("mode after leave", "code", code, "mode", ModeFromCode(code))

	target, ok := transportModes[s.kind]
	if !ok {
		return configErrorf("selected mode (transport %q) not supported", s.kind)
	}

	if err := s.enterMode(target); err != nil {
		return err
	}

	code, err = s.currentMode()
	if err != nil {
		return err
	}
	s.log.Debug("mode after enter", "code", code, "mode", ModeFromCode(code), "requested", target)

	return nil
}

// IDCode reads the target core ID.
func (s *Session) IDCode() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.command(coreIDRespSize, CmdDebug, DebugReadCoreID); err != nil {
		return 0, err
	}

	id := binary.LittleEndian.Uint32(s.rx[:coreIDRespSize])
	s.log.Debug("core id", "idcode", fmt.Sprintf("%08X", id))
	return id, nil
}

// State polls the core status. Transport failures yield StateUnknown so that
// polling loops always get a value.
func (s *Session) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.command(statusRespSize, CmdDebug, DebugGetStatus); err != nil {
		s.log.Debug("status query failed", "err", err)
		return StateUnknown
	}
	return decodeRunState(s.rx[0])
}

// Reset issues a system reset of the target.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.command(ackRespSize, CmdDebug, DebugResetSys); err != nil {
		return err
	}
	s.log.Debug("reset", "ack", fmt.Sprintf("%02X", s.rx[0]))
	return nil
}

// Run resumes the core.
func (s *Session) Run() error {
	return s.control(DebugRunCore)
}

// Halt forces the core into debug state.
func (s *Session) Halt() error {
	return s.control(DebugForceDebug)
}

// Step executes a single instruction.
func (s *Session) Step() error {
	return s.control(DebugStepCore)
}

func (s *Session) control(sub byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command(ackRespSize, CmdDebug, sub)
}
