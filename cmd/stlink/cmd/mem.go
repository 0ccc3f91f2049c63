package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
	"github.com/spf13/cobra"
)

var memCmd = &cobra.Command{
	Use:   "mem",
	Short: "Read or write target memory",
	Long: `Read or write target memory in bytes or 32-bit words. A single request moves
at most 512 bytes.

Examples:
  stlink mem read8 0x20000000 16
  stlink mem read32 0x08000000 4
  stlink mem write8 0x20000000 0x01 0x02 0x03
  stlink mem write32 0x20000000 0xDEADBEEF 0xCAFEBABE`,
}

var memRead8Cmd = &cobra.Command{
	Use:   "read8 <addr> <length>",
	Short: "Read bytes",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemRead8,
}

var memRead32Cmd = &cobra.Command{
	Use:   "read32 <addr> <words>",
	Short: "Read 32-bit words",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemRead32,
}

var memWrite8Cmd = &cobra.Command{
	Use:   "write8 <addr> <byte>...",
	Short: "Write bytes",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMemWrite8,
}

var memWrite32Cmd = &cobra.Command{
	Use:   "write32 <addr> <word>...",
	Short: "Write 32-bit words",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMemWrite32,
}

func init() {
	memCmd.AddCommand(memRead8Cmd, memRead32Cmd, memWrite8Cmd, memWrite32Cmd)
	rootCmd.AddCommand(memCmd)
}

func parseCount(arg string) (uint16, error) {
	v, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", arg, err)
	}
	return uint16(v), nil
}

// checkPayload rejects writes that do not fit one transfer before the length
// is narrowed to the 16-bit wire field.
func checkPayload(n, unit int) error {
	if n*unit > stlink.TxBufferSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d byte buffer", stlink.ErrConfig, n*unit, stlink.TxBufferSize)
	}
	return nil
}

func runMemRead8(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	n, err := parseCount(args[1])
	if err != nil {
		return err
	}

	return withSession(func(s *stlink.Session) error {
		buf := make([]byte, n)
		if err := s.ReadMem8(addr, n, buf); err != nil {
			return fmt.Errorf("read8 0x%08X: %w", addr, err)
		}
		fmt.Printf("0x%08X:\n%s", addr, hex.Dump(buf))
		return nil
	})
}

func runMemRead32(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	n, err := parseCount(args[1])
	if err != nil {
		return err
	}

	return withSession(func(s *stlink.Session) error {
		words := make([]uint32, n)
		if err := s.ReadMem32(addr, n, words); err != nil {
			return fmt.Errorf("read32 0x%08X: %w", addr, err)
		}
		for i, w := range words {
			fmt.Printf("0x%08X: 0x%08X\n", addr+uint32(i*4), w)
		}
		return nil
	})
}

func runMemWrite8(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}

	data := make([]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid byte %q: %w", a, err)
		}
		data = append(data, byte(v))
	}
	if err := checkPayload(len(data), 1); err != nil {
		return err
	}

	return withSession(func(s *stlink.Session) error {
		if err := s.WriteMem8(addr, uint16(len(data)), data); err != nil {
			return fmt.Errorf("write8 0x%08X: %w", addr, err)
		}
		fmt.Printf("Wrote %d byte(s) at 0x%08X\n", len(data), addr)
		return nil
	})
}

func runMemWrite32(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}

	words := make([]uint32, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := parseUint32(a)
		if err != nil {
			return err
		}
		words = append(words, v)
	}
	if err := checkPayload(len(words), 4); err != nil {
		return err
	}

	return withSession(func(s *stlink.Session) error {
		if err := s.WriteMem32(addr, uint16(len(words)), words); err != nil {
			return fmt.Errorf("write32 0x%08X: %w", addr, err)
		}
		fmt.Printf("Wrote %d word(s) at 0x%08X\n", len(words), addr)
		return nil
	})
}
