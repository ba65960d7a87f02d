package obdcan

import (
	"io"
	"strings"
	"sync"
)

// Output is the one way sink for user visible text.
type Output interface {
	// SendReply writes s followed by the line terminator
	SendReply(s string)
	// SendString writes s as is
	SendString(s string)
}

type writerOutput struct {
	w   io.Writer
	eol string
}

// NewWriterOutput returns an Output terminating replies with eol
func NewWriterOutput(w io.Writer, eol string) Output {
	return &writerOutput{w: w, eol: eol}
}

func (o *writerOutput) SendReply(s string) {
	io.WriteString(o.w, s+o.eol)
}

func (o *writerOutput) SendString(s string) {
	io.WriteString(o.w, s)
}

// Transcript records replies as lines, SendString text is prepended to the next line.
type Transcript struct {
	mu      sync.Mutex
	lines   []string
	partial strings.Builder
}

func (t *Transcript) SendReply(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partial.WriteString(s)
	t.lines = append(t.lines, t.partial.String())
	t.partial.Reset()
}

func (t *Transcript) SendString(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partial.WriteString(s)
}

// Lines returns a copy of the recorded lines
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Reset drops everything recorded so far
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.partial.Reset()
}
