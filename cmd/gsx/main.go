package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/drunlade/go-xmodem/internal/cli"
	"github.com/drunlade/go-xmodem/xmodem"
	"golang.org/x/crypto/ssh"
)

var (
	common cli.Flags

	sshHost  = flag.String("ssh", "", "send over SSH to host:port")
	sshUser  = flag.String("user", "", "SSH username")
	identity = flag.String("i", "", "SSH private key file (default: SSH_PASSWORD)")
	remote   = flag.String("remote", "", "receiving command on the SSH host (default: grx -o <file>)")
	wsURL    = flag.String("ws", "", "send over WebSocket to ws://host:port"+xmodem.WebSocketPath)
)

const versionString = "gsx version 0.1.0"

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

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "%s: exactly one file must be given\n", os.Args[0])
		showUsage(1)
	}
	if *sshHost != "" && *wsURL != "" {
		fmt.Fprintf(os.Stderr, "%s: -ssh and -ws are mutually exclusive\n", os.Args[0])
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		if !common.Quiet {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(filename string) error {
	config, err := common.Config()
	if err != nil {
		return err
	}

	logger, closeLog, err := common.Logger()
	if err != nil {
		return err
	}
	defer closeLog()

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", filename)
	}
	if info.Size()%xmodem.PacketSize != 0 && config.Padding == xmodem.PadNone {
		return fmt.Errorf("%s is %d bytes, not a multiple of %d (use -pad cpmeof)",
			filename, info.Size(), xmodem.PacketSize)
	}

	ctx, cancel := cli.SignalContext()
	defer cancel()

	logger = logger.WithField("file", filepath.Base(filename))
	progress := cli.NewProgress(os.Stderr, "Sending "+filepath.Base(filename),
		cli.Packets(info.Size(), config.Padding), !common.Quiet && cli.StderrIsTerminal())

	callbacks := &xmodem.Callbacks{
		OnProgress: progress.Track,
		OnRetry: func(seq byte, attempt int, err error) {
			logger.Info("packet %d attempt %d failed: %v", seq, attempt, err)
		},
		OnTransferComplete: func(_ xmodem.Direction, n int64, duration time.Duration) {
			if common.Verbose && !common.Quiet {
				fmt.Fprintf(os.Stderr, "Completed: %s (%d bytes in %v)\n", filename, n, duration)
			}
		},
	}
	opts := []xmodem.Option{
		xmodem.WithConfig(config),
		xmodem.WithCallbacks(callbacks),
		xmodem.WithLogger(logger),
	}

	switch {
	case *sshHost != "":
		err = sendSSH(ctx, file, filename, opts)
	case *wsURL != "":
		err = sendWebSocket(ctx, file, opts)
	default:
		err = sendStdio(ctx, file, opts)
	}
	progress.Finish(err)
	return err
}

// sendStdio transmits over our own stdin and stdout, for use inside a
// terminal session whose far end runs an XMODEM receiver.
func sendStdio(ctx context.Context, src io.Reader, opts []xmodem.Option) error {
	stdio, err := cli.OpenStdio()
	if err != nil {
		return fmt.Errorf("failed to set raw terminal mode: %w", err)
	}
	defer stdio.Restore()

	return withContext(ctx, func() error {
		_, err := xmodem.NewTransmitter(stdio, opts...).Transmit(src)
		return err
	})
}

func sendWebSocket(ctx context.Context, src io.Reader, opts []xmodem.Option) error {
	ch, err := xmodem.DialWebSocket(ctx, *wsURL)
	if err != nil {
		return err
	}
	defer ch.Close()

	return withContext(ctx, func() error {
		_, err := xmodem.NewTransmitter(ch, opts...).Transmit(src)
		return err
	})
}

func sendSSH(ctx context.Context, src io.Reader, filename string, opts []xmodem.Option) error {
	if *sshUser == "" {
		return errors.New("-user is required with -ssh")
	}

	auth, err := sshAuth()
	if err != nil {
		return err
	}

	config := &ssh.ClientConfig{
		User:            *sshUser,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", *sshHost, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	ch, err := xmodem.NewSSHChannel(session)
	if err != nil {
		session.Close()
		return fmt.Errorf("failed to set up session pipes: %w", err)
	}
	defer ch.Close()

	// Drain remote stderr so the command never blocks on it
	go func() {
		if common.Verbose {
			_, _ = io.Copy(os.Stderr, ch.Stderr())
			return
		}
		_, _ = io.Copy(io.Discard, ch.Stderr())
	}()

	command := *remote
	if command == "" {
		command = "grx -o " + filepath.Base(filename)
	}

	_, err = ch.Transmit(ctx, command, src, opts...)
	return err
}

// sshAuth picks public key auth when -i is given and password auth from
// SSH_PASSWORD otherwise.
func sshAuth() (ssh.AuthMethod, error) {
	if *identity != "" {
		key, err := os.ReadFile(*identity)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}

	pass := os.Getenv("SSH_PASSWORD")
	if pass == "" {
		return nil, errors.New("-i or SSH_PASSWORD environment variable is required")
	}
	return ssh.Password(pass), nil
}

// withContext runs transfer and gives up waiting for it when ctx ends.
// The engine has no timeouts, so an interrupted transfer is abandoned
// rather than unwound.
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
	fmt.Fprintf(os.Stderr, `%s - send a file with XMODEM (checksum)

Usage: %s [options] file

Transport (default: stdin/stdout):
  -ssh host:port   run the receiver on an SSH host
  -user name       SSH username
  -i file          SSH private key (otherwise SSH_PASSWORD is used)
  -remote cmd      receiving command (default: grx -o <file>)
  -ws url          send to a WebSocket receiver (grx -listen)

Options:
  -config file     TOML configuration file
  -retries N       attempts per packet (default: 10)
  -pad policy      final packet padding: none (default) or cpmeof
  -log file        protocol log file for debugging
  -trace           log every byte on the line
  -h               show this help message
  -q               quiet mode, minimal output
  -v               verbose mode
  -version         show version

Examples:
  %s image.bin                                   # Send over this terminal
  %s -ssh host:22 -user me -i ~/.ssh/id_ed25519 image.bin
  %s -ws ws://10.0.0.2:8022/xmodem -pad cpmeof notes.txt

`, versionString, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
