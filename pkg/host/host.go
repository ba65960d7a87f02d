// Package host implements the character link to the host: echo, command
// assembly and the prompt.
package host

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/roffe/obdcan/pkg/collector"
	"github.com/roffe/obdcan/pkg/command"
	"github.com/roffe/obdcan/pkg/config"
)

const Prompt = ">"

// Dispatcher runs a completed command line
type Dispatcher interface {
	Dispatch(cmd command.Command)
}

// Link is an obdcan.Output over the host connection
type Link struct {
	rw  io.ReadWriter
	cfg *config.Store

	mu        sync.Mutex
	collector *collector.Collector
}

func New(rw io.ReadWriter, cfg *config.Store) *Link {
	return &Link{
		rw:        rw,
		cfg:       cfg,
		collector: collector.New(),
	}
}

func (l *Link) eol() string {
	if l.cfg.Bool(config.Linefeed) {
		return "\r\n"
	}
	return "\r"
}

func (l *Link) write(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.rw, s)
}

func (l *Link) SendReply(s string) {
	l.write(s + l.eol())
}

func (l *Link) SendString(s string) {
	l.write(s)
}

// Run reads the host until ctx is done or the reader fails, io.EOF ends it cleanly
func (l *Link) Run(ctx context.Context, d Dispatcher) error {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := l.rw.Read(buf)
		for _, ch := range buf[:n] {
			l.OnChar(ch, d)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "host read failed")
		}
	}
	return ctx.Err()
}

// OnChar handles one received character, a CR dispatches the collected command
// and writes the prompt.
func (l *Link) OnChar(ch byte, d Dispatcher) {
	if l.cfg.Bool(config.Echo) && ch != '\n' {
		echo := string(ch)
		if ch == '\r' && l.cfg.Bool(config.Linefeed) {
			echo += "\n"
		}
		l.write(echo)
	}
	switch {
	case ch == '\r':
		d.Dispatch(l.collector)
		l.collector.Reset()
		l.SendReply("")
		l.write(Prompt)
	case ch >= 0x20 && ch <= 0x7E:
		l.collector.PutChar(ch)
	}
}
