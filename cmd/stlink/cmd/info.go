package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show probe firmware and target identity",
	Long: `Open a debug session and print the probe firmware version, the current probe
mode, the target core ID with its debug port, the STM32 device line read from
DBGMCU_IDCODE and the core run state.

Examples:
  stlink info
  stlink --adapter sim --sim-idcode 0x0BB11477 info`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withSession(func(s *stlink.Session) error {
		v := s.Version()
		fmt.Println("Probe Information:")
		fmt.Printf("  Firmware:  V%dJ%dS%d\n", v.Probe, v.JTAG, v.SWIM)
		fmt.Printf("  USB ID:    %04X:%04X\n", v.VendorID, v.ProductID)
		fmt.Printf("  Transport: %s\n", s.Transport())

		if code, err := s.CurrentMode(); err == nil {
			fmt.Printf("  Mode:      %s (0x%02X)\n", stlink.ModeFromCode(code), code)
		}

		id, err := s.IDCode()
		if err != nil {
			return fmt.Errorf("read core ID: %w", err)
		}
		port := deviceinfo.LookupPort(id)

		fmt.Println("\nTarget:")
		fmt.Printf("  Core ID:   0x%08X\n", id)
		fmt.Printf("  Designer:  %s\n", port.Manufacturer.Name)
		if port.Known {
			fmt.Printf("  Port:      %s v%d (%s)\n", port.Name, port.DPv, port.Cores)
		} else {
			fmt.Printf("  Port:      %s\n", port.Name)
		}

		// Not every target has DBGMCU; a failed read is not fatal.
		addr := deviceinfo.DBGMCUAddress(id)
		word := make([]uint32, 1)
		if err := s.ReadMem32(addr, 1, word); err != nil {
			logger.Debug("DBGMCU_IDCODE read failed", "addr", fmt.Sprintf("0x%08X", addr), "err", err)
		} else {
			mcu := deviceinfo.LookupMCU(word[0])
			fmt.Printf("  Device:    %s (DEV_ID 0x%03X, REV_ID 0x%04X)\n", mcu.Name, mcu.DevID, mcu.RevID)
			if mcu.Known {
				fmt.Printf("  Core:      %s\n", mcu.Core)
			}
		}

		fmt.Printf("  State:     %s\n", s.State())
		return nil
	})
}
