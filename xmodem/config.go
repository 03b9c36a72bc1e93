package xmodem

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// PadPolicy decides what the transmitter does with a final chunk shorter
// than PacketSize.
type PadPolicy int

const (
	// PadNone rejects a short final chunk with ErrUnexpectedEnd.
	// Sources must supply a multiple of PacketSize bytes.
	PadNone PadPolicy = iota

	// PadCPMEOF fills a short final chunk up to PacketSize with CPMEOF.
	// The receiver stores the padding verbatim.
	PadCPMEOF
)

func (p PadPolicy) String() string {
	switch p {
	case PadNone:
		return "none"
	case PadCPMEOF:
		return "cpmeof"
	default:
		return "unknown"
	}
}

// ParsePadPolicy parses "none" or "cpmeof".
func ParsePadPolicy(s string) (PadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "strict":
		return PadNone, nil
	case "cpmeof", "eof", "sub":
		return PadCPMEOF, nil
	default:
		return PadNone, fmt.Errorf("unknown padding policy %q", s)
	}
}

func (p PadPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PadPolicy) UnmarshalText(text []byte) error {
	v, err := ParsePadPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config holds transfer configuration.
type Config struct {
	// MaxRetries is the number of attempts per packet.
	MaxRetries int `toml:"max_retries"`

	// Padding is applied to a short final chunk when transmitting.
	Padding PadPolicy `toml:"padding"`

	// Trace logs every byte on the channel at debug level.
	Trace bool `toml:"trace"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: DefaultMaxRetries,
		Padding:    PadNone,
		Trace:      false,
	}
}

// Validate checks the configuration for values the drivers cannot use.
func (c *Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.Padding != PadNone && c.Padding != PadCPMEOF {
		return fmt.Errorf("invalid padding policy %d", c.Padding)
	}
	return nil
}

// LoadConfig reads a TOML configuration file. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return ParseConfig(string(data))
}

// ParseConfig parses TOML configuration text on top of DefaultConfig.
func ParseConfig(text string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config parse failed: unknown key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
