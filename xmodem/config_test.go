package xmodem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, PadNone, cfg.Padding)
	assert.False(t, cfg.Trace)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(`
max_retries = 4
padding = "cpmeof"
trace = true
`)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, PadCPMEOF, cfg.Padding)
	assert.True(t, cfg.Trace)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig(`trace = true`)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, PadNone, cfg.Padding)
}

func TestParseConfigErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      `retries = 3`,
		"bad padding":      `padding = "zeros"`,
		"zero retries":     `max_retries = 0`,
		"malformed toml":   `max_retries = `,
		"wrong value type": `max_retries = "ten"`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(text)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xmodem.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries = 7\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRetries)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "config load failed")
}

func TestPadPolicyText(t *testing.T) {
	for _, p := range []PadPolicy{PadNone, PadCPMEOF} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var back PadPolicy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}

	p, err := ParsePadPolicy(" SUB ")
	require.NoError(t, err)
	assert.Equal(t, PadCPMEOF, p)
}
