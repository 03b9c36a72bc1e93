package xmodem

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger interface for XMODEM protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})

	// WithField returns a Logger that adds key=value to every entry.
	WithField(key string, value interface{}) Logger
}

// logrusLogger adapts a logrus entry to Logger
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger returns a Logger writing through l.
// A nil l uses the logrus standard logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

// FileLogger writes debug-level protocol logs to a file
type FileLogger struct {
	Logger
	file *os.File
}

// NewFileLogger creates a logger that appends to the file at path
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(file)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	return &FileLogger{Logger: NewLogrusLogger(l), file: file}, nil
}

func (l *FileLogger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

func (n NoopLogger) WithField(string, interface{}) Logger { return n }

// TraceChannel wraps a Channel and logs every byte that crosses it.
type TraceChannel struct {
	inner  Channel
	logger Logger
}

// NewTraceChannel returns ch wrapped so that reads and writes are logged
// at debug level.
func NewTraceChannel(ch Channel, logger Logger) *TraceChannel {
	return &TraceChannel{inner: ch, logger: logger}
}

func (t *TraceChannel) ReadByte() (byte, error) {
	b, err := t.inner.ReadByte()
	if err != nil {
		t.readError(err)
		return b, err
	}
	t.logger.Debug("rx: %s", ControlName(b))
	return b, nil
}

func (t *TraceChannel) WriteByte(b byte) error {
	err := t.inner.WriteByte(b)
	if err != nil {
		t.logger.Error("tx: write error: %v", err)
		return err
	}
	t.logger.Debug("tx: %s", ControlName(b))
	return nil
}

func (t *TraceChannel) Read(p []byte) (int, error) {
	n, err := t.inner.Read(p)
	if n > 0 {
		t.logger.Debug("rx: %s", formatBlock(p[:n]))
	}
	if err != nil {
		t.readError(err)
	}
	return n, err
}

func (t *TraceChannel) Write(p []byte) (int, error) {
	n, err := t.inner.Write(p)
	if n > 0 {
		t.logger.Debug("tx: %s", formatBlock(p[:n]))
	}
	if err != nil {
		t.logger.Error("tx: write error: %v", err)
	}
	return n, err
}

func (t *TraceChannel) Flush() error {
	return t.inner.Flush()
}

// readError logs a failed read. End of stream is how a peer hangs up,
// so it only shows at debug level.
func (t *TraceChannel) readError(err error) {
	if errors.Is(err, io.EOF) {
		t.logger.Debug("rx: end of stream")
		return
	}
	t.logger.Error("rx: read error: %v", err)
}

// formatBlock renders a block of bytes for the trace, truncated to one packet.
func formatBlock(data []byte) string {
	if len(data) > PacketSize {
		return fmt.Sprintf("%d bytes % x...[truncated]", len(data), data[:PacketSize])
	}
	return fmt.Sprintf("%d bytes % x", len(data), data)
}
