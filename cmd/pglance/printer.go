package main

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/fatih/color"
)

// dsWriter prefixes every line with the dataset label, colorized by a hash
// of the label so interleaved output from concurrent datasets stays readable.
type dsWriter struct {
	wr      io.Writer
	label   string
	noColor bool
	mu      sync.Mutex
}

func newDSWriter(wr io.Writer, label string, noColor bool) *dsWriter {
	return &dsWriter{wr: wr, label: label, noColor: noColor}
}

// Printf writes one prefixed line.
func (w *dsWriter) Printf(format string, v ...any) {
	line := fmt.Sprintf(format, v...)
	prefix := fmt.Sprintf("[%s]", w.label)
	if !w.noColor {
		prefix = w.colorizer()("%s", prefix)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.wr, "%s %s\n", prefix, line)
}

// PrintJSON writes the value as a single json line.
func (w *dsWriter) PrintJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("can't encode output for %s: %w", w.label, err)
	}
	w.Printf("%s", data)
	return nil
}

// colorizer picks a stable color for the label.
func (w *dsWriter) colorizer() func(format string, a ...any) string {
	colors := []color.Attribute{
		color.FgHiYellow, color.FgHiGreen, color.FgHiCyan,
		color.FgHiBlue, color.FgHiMagenta, color.FgYellow,
	}
	i := crc32.ChecksumIEEE([]byte(w.label)) % uint32(len(colors))
	return color.New(colors[i]).SprintfFunc()
}
