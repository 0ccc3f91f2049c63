// Package config loads probe settings from a JSON, YAML or TOML file. The CLI
// applies its flags on top of the loaded values.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceSTLink/pkg/stlink"
)

// Adapter backends selectable from config and flags.
const (
	AdapterUSB = "usb"
	AdapterSim = "sim"
)

// Config is the on-disk configuration.
type Config struct {
	Adapter   string `json:"adapter" yaml:"adapter" toml:"adapter"`
	Transport string `json:"transport" yaml:"transport" toml:"transport"`
	VendorID  uint16 `json:"vid" yaml:"vid" toml:"vid"`
	ProductID uint16 `json:"pid" yaml:"pid" toml:"pid"`
	Timeout   string `json:"timeout" yaml:"timeout" toml:"timeout"`

	Log Log `json:"log" yaml:"log" toml:"log"`
}

// Log holds logging settings.
type Log struct {
	Level string `json:"level" yaml:"level" toml:"level"`
	File  string `json:"file" yaml:"file" toml:"file"`
}

// Default returns the built-in settings: an ST-Link/V2 over USB using SWD.
func Default() Config {
	return Config{
		Adapter:   AdapterUSB,
		Transport: string(stlink.TransportSWD),
		VendorID:  stlink.VendorIDST,
		ProductID: stlink.ProductIDSTLinkV2,
		Timeout:   stlink.DefaultTimeout.String(),
		Log:       Log{Level: "info"},
	}
}

// Load reads path on top of the defaults. The format follows the file
// extension; unknown extensions are read as JSON.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	switch FormatOf(path) {
	case "yaml":
		err = yaml.Unmarshal(data, &cfg)
	case "toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Marshal renders cfg in the given format ("json", "yaml" or "toml").
func Marshal(cfg Config, format string) ([]byte, error) {
	switch NormalizeFormat(format) {
	case "json":
		return json.MarshalIndent(cfg, "", "  ")
	case "yaml":
		return yaml.Marshal(cfg)
	case "toml":
		return toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	var errs []error

	switch c.Adapter {
	case AdapterUSB, AdapterSim:
	default:
		errs = append(errs, fmt.Errorf("adapter must be %q or %q, got %q", AdapterUSB, AdapterSim, c.Adapter))
	}
	if _, err := stlink.ParseTransportKind(c.Transport); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// TimeoutDuration parses Timeout. An empty value yields the protocol default.
func (c Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return stlink.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}

// NormalizeFormat maps format names and aliases to "json", "yaml" or "toml".
func NormalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// FormatOf derives the format from a file extension.
func FormatOf(path string) string {
	return NormalizeFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// DefaultDir returns the platform-specific configuration directory.
func DefaultDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, "OpenTraceSTLink"), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "opentrace-stlink"), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "opentrace-stlink"), nil
		}
		return "", errors.New("HOME not set")
	}
}

// Find returns the first existing config file, checking the working
// directory before the default directory. It returns "" if none exists.
func Find() string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if dir, err := DefaultDir(); err == nil {
		dirs = append(dirs, dir)
	}

	for _, dir := range dirs {
		for _, name := range []string{"stlink.yaml", "stlink.yml", "stlink.toml", "stlink.json"} {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
