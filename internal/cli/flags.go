// Package cli holds the pieces gsx and grx share: common flags, logging
// setup, the stdio transport and the terminal progress display.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drunlade/go-xmodem/xmodem"
	"github.com/sirupsen/logrus"
)

// Flags are the options both commands accept.
type Flags struct {
	ConfigPath string
	Retries    int
	Pad        string
	LogPath    string
	Verbose    bool
	Quiet      bool
	Trace      bool
	Help       bool
	Version    bool
}

// Register adds the shared flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "TOML configuration file")
	fs.IntVar(&f.Retries, "retries", 0, "attempts per packet (default from config, 10)")
	fs.StringVar(&f.Pad, "pad", "", "final packet padding: none or cpmeof")
	fs.StringVar(&f.LogPath, "log", "", "protocol log file (debug level)")
	fs.BoolVar(&f.Verbose, "v", false, "verbose mode")
	fs.BoolVar(&f.Quiet, "q", false, "quiet mode")
	fs.BoolVar(&f.Trace, "trace", false, "log every byte on the line")
	fs.BoolVar(&f.Help, "h", false, "show help")
	fs.BoolVar(&f.Version, "version", false, "show version")
}

// Config loads the configuration file, if any, and applies the flags
// on top of it.
func (f *Flags) Config() (*xmodem.Config, error) {
	cfg := xmodem.DefaultConfig()
	if f.ConfigPath != "" {
		loaded, err := xmodem.LoadConfig(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.Retries != 0 {
		cfg.MaxRetries = f.Retries
	}
	if f.Pad != "" {
		pad, err := xmodem.ParsePadPolicy(f.Pad)
		if err != nil {
			return nil, fmt.Errorf("invalid -pad: %w", err)
		}
		cfg.Padding = pad
	}
	if f.Trace {
		cfg.Trace = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger builds the transfer logger. With -log everything goes to the
// file at debug level; otherwise entries go to stderr at a level picked
// from -q, -v and -trace. The returned function releases the log file.
func (f *Flags) Logger() (xmodem.Logger, func(), error) {
	if f.LogPath != "" {
		fl, err := xmodem.NewFileLogger(f.LogPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return fl, func() { fl.Close() }, nil
	}

	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	switch {
	case f.Trace:
		l.SetLevel(logrus.DebugLevel)
	case f.Verbose:
		l.SetLevel(logrus.InfoLevel)
	case f.Quiet:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.WarnLevel)
	}
	return xmodem.NewLogrusLogger(l), func() {}, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
