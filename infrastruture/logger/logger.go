// Package logger provides component loggers with a colored prefix.
package logger

import (
	"errors"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var ErrEmptyPrefix = errors.New("logger prefix must not be empty")

// Logger writes leveled, timestamped lines tagged with a component prefix.
type Logger struct {
	l *log.Logger
}

// New creates a logger writing to w whose prefix is rendered in color.
func New(prefix string, color lipgloss.Color, w io.Writer) (*Logger, error) {
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	styles := log.DefaultStyles()
	styles.Prefix = lipgloss.NewStyle().Foreground(color).Bold(true)
	l.SetStyles(styles)

	return &Logger{l: l}, nil
}

// SetDebug toggles debug output.
func (lg *Logger) SetDebug(on bool) {
	if on {
		lg.l.SetLevel(log.DebugLevel)
		return
	}
	lg.l.SetLevel(log.InfoLevel)
}

// Debug logs at debug level.
func (lg *Logger) Debug(msg string) { lg.l.Debug(msg) }

// Info logs at info level.
func (lg *Logger) Info(msg string) { lg.l.Info(msg) }

// Warning logs at warn level.
func (lg *Logger) Warning(msg string) { lg.l.Warn(msg) }

// Error logs at error level.
func (lg *Logger) Error(msg string) { lg.l.Error(msg) }
