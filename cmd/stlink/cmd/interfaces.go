package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
	"github.com/spf13/cobra"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available ST-Link probes",
	Long: `Scan the host for ST-Link probes (V1, V2, V2-1, V3) and print a summary of the
detected devices. Devices are only inspected, not opened. The simulator is always
listed so commands can be tried without hardware.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := stlink.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No probes found.")
		return nil
	}

	fmt.Println("Detected probes:")
	for _, p := range infos {
		if p.Kind == stlink.ProbeKindSim {
			fmt.Printf("  - %s [%s] (use --adapter sim)\n", p.Label(), p.Kind)
			continue
		}
		fmt.Printf("  - %s [%s] (VID:PID %04X:%04X, bus %d addr %d)\n",
			p.Label(), p.Kind, p.VendorID, p.ProductID, p.Bus, p.Address)
	}

	return nil
}
