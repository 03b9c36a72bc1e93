package cli

import (
	"os"

	"github.com/drunlade/go-xmodem/xmodem"
	"golang.org/x/term"
)

// Stdio is the stdin/stdout transport. When stdin is a terminal it is
// switched to raw mode so control bytes pass through untouched.
type Stdio struct {
	xmodem.Channel
	fd       int
	oldState *term.State
}

// OpenStdio binds stdin and stdout as a Channel.
func OpenStdio() (*Stdio, error) {
	s := &Stdio{
		Channel: xmodem.NewChannelRW(os.Stdin, os.Stdout),
		fd:      int(os.Stdin.Fd()),
	}

	if term.IsTerminal(s.fd) {
		oldState, err := term.MakeRaw(s.fd)
		if err != nil {
			return nil, err
		}
		s.oldState = oldState
	}
	return s, nil
}

// Restore puts the terminal back the way OpenStdio found it.
func (s *Stdio) Restore() {
	if s.oldState != nil {
		term.Restore(s.fd, s.oldState)
		s.oldState = nil
	}
}

// StderrIsTerminal reports whether a progress display can be drawn.
func StderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
