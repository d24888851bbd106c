package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Sink receives failures as they are raised. The core never formats
// or prints on its own; it hands everything to the sink.
type Sink interface {
	Report(*Failure)
}

// CollectorSink accumulates failures in order of arrival.
type CollectorSink struct {
	Failures []*Failure
}

func (s *CollectorSink) Report(f *Failure) {
	s.Failures = append(s.Failures, f)
}

// HasErrors reports whether any collected failure is error-severity.
func (s *CollectorSink) HasErrors() bool {
	for _, f := range s.Failures {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

const (
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

// ConsoleSink writes failures to a writer, coloring them when the
// writer is a terminal.
type ConsoleSink struct {
	Out   io.Writer
	color bool
}

// NewConsoleSink returns a sink writing to stderr, with color enabled
// only when stderr is a tty.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{
		Out:   os.Stderr,
		color: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
}

func (s *ConsoleSink) Report(f *Failure) {
	label, tint := "error", ansiRed
	if f.Severity == SeverityWarning {
		label, tint = "warning", ansiYellow
	}
	if s.color {
		fmt.Fprintf(s.Out, "%s%s[%s]%s %s: %s\n", tint, label, f.Code, ansiReset, f.Pos, f.Message)
	} else {
		fmt.Fprintf(s.Out, "%s[%s] %s: %s\n", label, f.Code, f.Pos, f.Message)
	}
}
