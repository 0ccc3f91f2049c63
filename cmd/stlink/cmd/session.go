package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceSTLink/internal/config"
	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
)

// newSimProbe builds the probe behind --adapter sim. Tests replace it to
// preload state.
var newSimProbe = func() *stlink.SimProbe {
	sim := stlink.NewSimProbe()
	sim.CoreID = simCoreID
	return sim
}

// openSession opens a session from the resolved settings.
func openSession() (*stlink.Session, error) {
	kind, err := stlink.ParseTransportKind(settings.Transport)
	if err != nil {
		return nil, err
	}
	d, err := settings.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	opts := []stlink.Option{
		stlink.WithTimeout(d),
		stlink.WithLogger(logger),
	}

	switch settings.Adapter {
	case config.AdapterSim:
		if verbose {
			fmt.Println("Using simulator adapter")
		}
		sim := newSimProbe()
		opts = append(opts, stlink.WithOpener(func(vid, pid uint16) (stlink.Transport, error) {
			return sim, nil
		}))
	case config.AdapterUSB:
		if verbose {
			fmt.Printf("Opening ST-Link %04X:%04X...\n", settings.VendorID, settings.ProductID)
		}
	default:
		return nil, fmt.Errorf("unknown adapter %q", settings.Adapter)
	}

	s, err := stlink.Open(kind, settings.VendorID, settings.ProductID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open probe: %w", err)
	}
	return s, nil
}

// withSession opens a session, runs fn and closes the session.
func withSession(fn func(s *stlink.Session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}()
	return fn(s)
}
