package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/OpenTraceLab/OpenTraceSTLink/internal/config"
	xlog "github.com/OpenTraceLab/OpenTraceSTLink/internal/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
	adapterArg string
	transport  string
	vendorID   uint16
	productID  uint16
	timeout    time.Duration
	logLevel   string
	logFile    string
	simCoreID  uint32

	// Resolved by the persistent pre-run
	settings config.Config
	logger   *slog.Logger
	closers  []io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "stlink",
	Short: "ST-Link debug probe driver",
	Long: `Drive an ST-Link USB debug probe: bring up an SWD or JTAG session, control
the target core, and read or write its registers and memory.

Settings come from a config file (stlink.yaml, stlink.toml or stlink.json in the
working directory or the user config directory) and are overridden by flags.

Examples:
  stlink interfaces                                  # List attached probes
  stlink info                                        # Firmware, core ID and state
  stlink --adapter sim halt                          # Halt the simulated core
  stlink mem read32 0x08000000 4                     # Read the vector table head
  stlink reg set pc 0x08000131                       # Write a core register`,
	Version:            "0.9.0",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	logger = slog.New(slog.DiscardHandler)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (implies --log-level debug)")
	pf.StringVarP(&configPath, "config", "c", "", "config file (yaml, toml or json)")
	pf.StringVarP(&adapterArg, "adapter", "a", config.AdapterUSB, "adapter backend (usb, sim)")
	pf.StringVarP(&transport, "transport", "t", "swd", "debug transport (swd, jtag, swim)")
	pf.Uint16Var(&vendorID, "vid", 0x0483, "probe USB vendor ID")
	pf.Uint16Var(&productID, "pid", 0x3748, "probe USB product ID")
	pf.DurationVar(&timeout, "timeout", time.Second, "per-transfer USB timeout")
	pf.StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "write logs to a rotating file")
	pf.Uint32Var(&simCoreID, "sim-idcode", 0x1BA01477, "simulator: core ID to report")
}

// setup loads the config file, applies explicitly set flags on top and
// configures logging.
func setup(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	path := configPath
	if path == "" {
		path = config.Find()
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("adapter") {
		cfg.Adapter = adapterArg
	}
	if flags.Changed("transport") {
		cfg.Transport = transport
	}
	if flags.Changed("vid") {
		cfg.VendorID = vendorID
	}
	if flags.Changed("pid") {
		cfg.ProductID = productID
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout.String()
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	} else if verbose {
		cfg.Log.Level = "debug"
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	l, c, err := xlog.SetupLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	settings, logger, closers = cfg, l, c

	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
	return nil
}
