package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drunlade/go-xmodem/internal/cli"
	"github.com/drunlade/go-xmodem/xmodem"
)

var (
	common cli.Flags

	output    = flag.String("o", "", "output file (- for stdout, not with stdio transport)")
	listen    = flag.String("listen", "", "wait for a WebSocket sender on this address")
	overwrite = flag.Bool("y", false, "overwrite an existing output file")
)

const versionString = "grx version 0.1.0"

func main() {
	common.Register(flag.CommandLine)
	flag.Usage = func() { showUsage(2) }
	flag.Parse()

	if common.Help {
		showUsage(0)
	}

	if common.Version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	if *output == "" {
		fmt.Fprintf(os.Stderr, "%s: -o is required\n", os.Args[0])
		showUsage(1)
	}
	if *output == "-" && *listen == "" {
		fmt.Fprintf(os.Stderr, "%s: stdout carries the transfer; -o - needs -listen\n", os.Args[0])
		os.Exit(1)
	}

	if err := run(); err != nil {
		if !common.Quiet {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	config, err := common.Config()
	if err != nil {
		return err
	}

	logger, closeLog, err := common.Logger()
	if err != nil {
		return err
	}
	defer closeLog()

	dst, err := cli.CreateOutput(*output, *overwrite)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SignalContext()
	defer cancel()

	logger = logger.WithField("file", *output)
	progress := cli.NewProgress(os.Stderr, "Receiving "+*output, 0,
		!common.Quiet && cli.StderrIsTerminal())

	callbacks := &xmodem.Callbacks{
		OnProgress: progress.Track,
		OnRetry: func(seq byte, attempt int, err error) {
			logger.Info("packet %d attempt %d failed: %v", seq, attempt, err)
		},
		OnTransferComplete: func(_ xmodem.Direction, n int64, duration time.Duration) {
			if common.Verbose && !common.Quiet {
				fmt.Fprintf(os.Stderr, "Completed: %s (%d bytes in %v)\n", *output, n, duration)
			}
		},
	}
	opts := []xmodem.Option{
		xmodem.WithConfig(config),
		xmodem.WithCallbacks(callbacks),
		xmodem.WithLogger(logger),
	}

	if *listen != "" {
		err = receiveWebSocket(ctx, dst, opts)
	} else {
		err = receiveStdio(ctx, dst, opts)
	}
	progress.Finish(err)

	if ferr := dst.Finish(err); err == nil {
		err = ferr
	}
	return err
}

func receiveStdio(ctx context.Context, dst io.Writer, opts []xmodem.Option) error {
	stdio, err := cli.OpenStdio()
	if err != nil {
		return fmt.Errorf("failed to set raw terminal mode: %w", err)
	}
	defer stdio.Restore()

	return withContext(ctx, func() error {
		_, err := xmodem.NewReceiver(stdio, opts...).Receive(dst)
		return err
	})
}

func receiveWebSocket(ctx context.Context, dst io.Writer, opts []xmodem.Option) error {
	l, err := xmodem.ListenWebSocket(*listen)
	if err != nil {
		return err
	}
	defer l.Close()

	if !common.Quiet {
		fmt.Fprintf(os.Stderr, "Waiting for sender on %s\n", l.URL())
	}

	ch, err := l.Accept(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	return withContext(ctx, func() error {
		_, err := xmodem.NewReceiver(ch, opts...).Receive(dst)
		return err
	})
}

// withContext runs transfer and gives up waiting for it when ctx ends.
func withContext(ctx context.Context, transfer func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- transfer()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - receive a file with XMODEM (checksum)

Usage: %s [options] -o file

Transport (default: stdin/stdout):
  -listen addr     accept one WebSocket sender on addr (path %s)

Options:
  -o file          output file, - for stdout with -listen
  -y               overwrite an existing output file
  -config file     TOML configuration file
  -retries N       attempts per packet (default: 10)
  -log file        protocol log file for debugging
  -trace           log every byte on the line
  -h               show this help message
  -q               quiet mode, minimal output
  -v               verbose mode
  -version         show version

Examples:
  %s -o image.bin                  # Receive over this terminal
  %s -listen :8022 -o notes.txt    # Wait for gsx -ws

`, versionString, os.Args[0], xmodem.WebSocketPath, os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
