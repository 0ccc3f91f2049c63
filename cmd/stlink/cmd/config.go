package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OpenTraceLab/OpenTraceSTLink/internal/config"
	"github.com/spf13/cobra"
)

var (
	configFormat string
	configOutput string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:               "config",
	Short:             "Manage configuration files",
	PersistentPreRunE: skipSetup,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default settings to stlink.<format> in the current directory, or to
--output.

Examples:
  stlink config init --format yaml
  stlink config init --format toml --output ~/.config/opentrace-stlink/stlink.toml`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format (json, yaml, toml)")
	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "", "destination file path")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite if the file already exists")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// skipSetup replaces the root pre-run so a broken config file does not
// prevent writing a fresh one.
func skipSetup(cmd *cobra.Command, args []string) error {
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	format := config.NormalizeFormat(configFormat)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", configFormat)
	}

	dest := configOutput
	if dest == "" {
		dest = "stlink." + format
	}
	if !configForce {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}

	data, err := config.Marshal(config.Default(), format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", dest)
	return nil
}
