package log

import (
	"io"
	"os"
	"sync"
)

// Output receives formatted entries.
type Output interface {
	Write(entry *Entry, formatted []byte) error
}

// ConsoleOutput writes entries to a writer, errors and above to stderr.
type ConsoleOutput struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewConsoleOutput returns an Output writing to stdout/stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{out: os.Stdout, errOut: os.Stderr}
}

// NewWriterOutput returns an Output writing everything to w. Used in tests.
func NewWriterOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{out: w, errOut: w}
}

// Write implements Output.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.out
	if entry.Level >= ErrorLevel {
		w = o.errOut
	}
	_, err := w.Write(formatted)
	return err
}
