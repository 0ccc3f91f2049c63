package cmd

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
	"github.com/spf13/cobra"
)

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Dump all core registers",
	Args:  cobra.NoArgs,
	RunE:  runRegs,
}

var regCmd = &cobra.Command{
	Use:   "reg",
	Short: "Read or write a single core register",
	Long: `Read or write one core register by name (r0-r12, sp, lr, pc, xpsr, msp, psp,
rw, rw2) or by number (0-20).

Examples:
  stlink reg get pc
  stlink reg set r0 0xDEADBEEF`,
}

var regGetCmd = &cobra.Command{
	Use:   "get <register>",
	Short: "Read a core register",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegGet,
}

var regSetCmd = &cobra.Command{
	Use:   "set <register> <value>",
	Short: "Write a core register",
	Args:  cobra.ExactArgs(2),
	RunE:  runRegSet,
}

func init() {
	regCmd.AddCommand(regGetCmd, regSetCmd)
	rootCmd.AddCommand(regsCmd, regCmd)
}

func runRegs(cmd *cobra.Command, args []string) error {
	return withSession(func(s *stlink.Session) error {
		block, err := s.ReadRegisters()
		if err != nil {
			return fmt.Errorf("read registers: %w", err)
		}
		for i, v := range block.Registers() {
			fmt.Printf("%-5s 0x%08X\n", stlink.RegisterNames[i], v)
		}
		return nil
	})
}

func runRegGet(cmd *cobra.Command, args []string) error {
	n, err := parseRegister(args[0])
	if err != nil {
		return err
	}
	return withSession(func(s *stlink.Session) error {
		v, err := s.ReadRegister(n)
		if err != nil {
			return err
		}
		fmt.Printf("%s = 0x%08X\n", stlink.RegisterNames[n], v)
		return nil
	})
}

func runRegSet(cmd *cobra.Command, args []string) error {
	n, err := parseRegister(args[0])
	if err != nil {
		return err
	}
	value, err := parseUint32(args[1])
	if err != nil {
		return err
	}
	return withSession(func(s *stlink.Session) error {
		if err := s.WriteRegister(n, value); err != nil {
			return err
		}
		fmt.Printf("%s <- 0x%08X\n", stlink.RegisterNames[n], value)
		return nil
	})
}

// parseRegister accepts a register name or number.
func parseRegister(arg string) (int, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 0 || n >= stlink.NumRegisters {
			return 0, fmt.Errorf("register %d out of range 0-%d", n, stlink.NumRegisters-1)
		}
		return n, nil
	}
	return stlink.RegisterIndex(arg)
}

func parseUint32(arg string) (uint32, error) {
	v, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", arg, err)
	}
	return uint32(v), nil
}
