package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the core run state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *stlink.Session) error {
			fmt.Println(s.State())
			return nil
		})
	},
}

// controlCommand builds a command that issues one core control request.
func controlCommand(use, short, done string, op func(stlink.Adapter) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *stlink.Session) error {
				if err := op(s); err != nil {
					return fmt.Errorf("%s: %w", use, err)
				}
				fmt.Printf("%s (state: %s)\n", done, s.State())
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(controlCommand("reset", "Reset the target system", "Target reset", (stlink.Adapter).Reset))
	rootCmd.AddCommand(controlCommand("run", "Resume the core", "Core running", (stlink.Adapter).Run))
	rootCmd.AddCommand(controlCommand("halt", "Halt the core", "Core halted", (stlink.Adapter).Halt))
	rootCmd.AddCommand(controlCommand("step", "Execute a single instruction", "Stepped", (stlink.Adapter).Step))
}
