package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/drunlade/go-xmodem/xmodem"
	"github.com/pterm/pterm"
)

// Progress turns session progress events into a terminal display: a bar
// when the number of packets is known, a spinner otherwise. A Progress
// without a display still keeps statistics.
type Progress struct {
	tracker *xmodem.ProgressTracker
	bar     *pterm.ProgressbarPrinter
	spinner *pterm.SpinnerPrinter
}

// NewProgress prepares a display writing to w. total is the expected
// number of packets, or 0 when unknown. When show is false nothing is
// drawn.
func NewProgress(w io.Writer, title string, total int64, show bool) *Progress {
	p := &Progress{}
	p.tracker = xmodem.NewProgressTracker(p.update, 250*time.Millisecond)

	if !show {
		return p
	}
	if total > 0 {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(int(total)).
			WithTitle(title).
			WithWriter(w).
			Start()
		if err == nil {
			p.bar = bar
		}
		return p
	}

	spinner, err := pterm.DefaultSpinner.
		WithWriter(w).
		Start(title)
	if err == nil {
		p.spinner = spinner
	}
	return p
}

// Track satisfies xmodem.ProgressFunc.
func (p *Progress) Track(ev xmodem.ProgressEvent) {
	p.tracker.Track(ev)
	if ev.Kind == xmodem.ProgressPacket && p.bar != nil {
		p.bar.Increment()
	}
}

func (p *Progress) update(packets, bytes int64, rate float64) {
	if p.spinner != nil {
		p.spinner.UpdateText(fmt.Sprintf("%d packets, %s (%s/s)",
			packets, formatBytes(bytes), formatBytes(int64(rate))))
	}
}

// Finish stops the display and reports the outcome.
func (p *Progress) Finish(err error) time.Duration {
	duration := p.tracker.Complete()
	_, n, _, _ := p.tracker.Stats()

	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
	if p.spinner != nil {
		if err != nil {
			p.spinner.Fail(err.Error())
		} else {
			p.spinner.Success(fmt.Sprintf("received %s in %v", formatBytes(n), duration.Round(time.Millisecond)))
		}
	}
	return duration
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Packets returns how many packets a source of size bytes occupies under
// pad.
func Packets(size int64, pad xmodem.PadPolicy) int64 {
	packets := size / xmodem.PacketSize
	if size%xmodem.PacketSize != 0 && pad == xmodem.PadCPMEOF {
		packets++
	}
	return packets
}
