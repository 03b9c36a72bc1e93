package xmodem

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHChannel runs the XMODEM peer as a remote command and talks to it
// over the command's stdin and stdout.
type SSHChannel struct {
	Channel
	sshSession *ssh.Session
	stdin      io.WriteCloser
	stderr     io.Reader
}

// NewSSHChannel binds the stdin and stdout of sshSession as a Channel.
// The remote command is started by Transmit or Receive.
func NewSSHChannel(sshSession *ssh.Session) (*SSHChannel, error) {
	// Get pipes
	stdin, err := sshSession.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	stderr, err := sshSession.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	return &SSHChannel{
		Channel:    newChannelIO(stdout, stdin),
		sshSession: sshSession,
		stdin:      stdin,
		stderr:     stderr,
	}, nil
}

// Transmit starts command on the remote host, which must receive with
// XMODEM, and sends src to it.
func (c *SSHChannel) Transmit(ctx context.Context, command string, src io.Reader, opts ...Option) (int64, error) {
	var n int64
	err := c.run(ctx, command, func() error {
		var err error
		n, err = NewTransmitter(c, opts...).Transmit(src)
		return err
	})
	return n, err
}

// Receive starts command on the remote host, which must send with
// XMODEM, and writes what it sends to dst.
func (c *SSHChannel) Receive(ctx context.Context, command string, dst io.Writer, opts ...Option) (int64, error) {
	var n int64
	err := c.run(ctx, command, func() error {
		var err error
		n, err = NewReceiver(c, opts...).Receive(dst)
		return err
	})
	return n, err
}

// run starts command, runs transfer and waits for the command to exit.
// If ctx ends first the session is closed, which fails the transfer's
// blocked reads and writes.
func (c *SSHChannel) run(ctx context.Context, command string, transfer func() error) error {
	if err := c.sshSession.Start(command); err != nil {
		return err
	}

	// Wait for command to finish in background
	done := make(chan error, 1)
	go func() {
		done <- c.sshSession.Wait()
	}()

	err := runContext(ctx, transfer, func() { c.sshSession.Close() })

	// Close stdin to signal completion
	c.stdin.Close()

	select {
	case err2 := <-done:
		if err == nil {
			err = err2
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return err
}

// runContext runs transfer in its own goroutine. When ctx ends before
// transfer returns, abort is called to unblock it and ctx.Err() is
// returned without waiting further.
func runContext(ctx context.Context, transfer func() error, abort func()) error {
	done := make(chan error, 1)
	go func() {
		done <- transfer()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abort()
		return ctx.Err()
	}
}

// Close closes the SSH session and cleans up resources.
func (c *SSHChannel) Close() error {
	var errs []error

	if c.stdin != nil {
		if err := c.stdin.Close(); err != nil && err != io.EOF {
			errs = append(errs, err)
		}
	}

	if c.sshSession != nil {
		if err := c.sshSession.Close(); err != nil && err != io.EOF {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0] // Return first error
	}

	return nil
}

// Stderr returns the stderr reader for monitoring remote command output.
func (c *SSHChannel) Stderr() io.Reader {
	return c.stderr
}
