// Package formatter renders received ISO-TP frames as ELM style text lines.
package formatter

import (
	"fmt"
	"strings"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
)

// Key selects the text layout
type Key int

const (
	KeyStandard Key = iota // payload only, PCI stripped
	KeyHeaders             // identifier, optional DLC, raw frame bytes
	KeyCAFOff              // raw 8 bytes, identifier only when headers are shown
)

func (k Key) String() string {
	switch k {
	case KeyStandard:
		return "standard"
	case KeyHeaders:
		return "headers"
	case KeyCAFOff:
		return "caf-off"
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// Kind is the ISO-TP frame type being rendered
type Kind int

const (
	SingleFrame Kind = iota
	FirstFrame
	ConsecutiveFrame
)

// Options holds everything the rendering depends on
type Options struct {
	Key     Key
	ExtAddr bool
	Spaces  bool
	DLC     bool
	Headers bool
}

// KeyFor derives the layout from the configuration, CAF off wins over headers.
func KeyFor(cfg *config.Store) Key {
	key := KeyStandard
	if cfg.Bool(config.HeaderShow) {
		key = KeyHeaders
	}
	if !cfg.Bool(config.CanCAF) {
		key = KeyCAFOff
	}
	return key
}

func OptionsFrom(cfg *config.Store) Options {
	return Options{
		Key:     KeyFor(cfg),
		ExtAddr: cfg.Bytes(config.CanExt).Len > 0,
		Spaces:  cfg.Bool(config.Spaces),
		DLC:     cfg.Bool(config.CanDLC),
		Headers: cfg.Bool(config.HeaderShow),
	}
}

// Format renders a frame, first frames in the standard layout produce two lines.
// num is the running consecutive frame counter and only used for ConsecutiveFrame.
func Format(kind Kind, msg *obdcan.CANFrame, num int, o Options) []string {
	offset := 1
	if o.ExtAddr {
		offset = 2
	}

	switch o.Key {
	case KeyHeaders:
		n := 8
		if kind == SingleFrame {
			n = int(msg.Data[offset-1]) + offset
		}
		return []string{o.withHeader(msg, n)}
	case KeyCAFOff:
		var sb strings.Builder
		if o.Headers {
			sb.WriteString(obdcan.IDString(msg.Identifier, msg.Extended))
			if o.Spaces {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(o.hex(msg.Data[:]))
		return []string{sb.String()}
	}

	switch kind {
	case FirstFrame:
		length := uint32(msg.Data[offset-1]&0x0F)<<8 | uint32(msg.Data[offset])
		n := 6
		if o.ExtAddr {
			n = 5
		}
		return []string{
			obdcan.IDString(length, false),
			"0: " + o.hex(window(msg, offset+1, n)),
		}
	case ConsecutiveFrame:
		n := 7
		if o.ExtAddr {
			n = 6
		}
		return []string{fmt.Sprintf("%X: ", num&0x0F) + o.hex(window(msg, offset, n))}
	default:
		return []string{o.hex(window(msg, offset, int(msg.Data[offset-1])))}
	}
}

func (o Options) withHeader(msg *obdcan.CANFrame, n int) string {
	var sb strings.Builder
	sb.WriteString(obdcan.IDString(msg.Identifier, msg.Extended))
	if o.Spaces {
		sb.WriteByte(' ')
	}
	if o.DLC {
		sb.WriteByte('0' + msg.DLC)
		if o.Spaces {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString(o.hex(window(msg, 0, n)))
	return sb.String()
}

// window clamps [start, start+n) to the frame
func window(msg *obdcan.CANFrame, start, n int) []byte {
	if start > obdcan.FrameLen {
		start = obdcan.FrameLen
	}
	end := start + n
	if n < 0 || end > obdcan.FrameLen {
		end = obdcan.FrameLen
	}
	return msg.Data[start:end]
}

func (o Options) hex(data []byte) string {
	sep := ""
	if o.Spaces {
		sep = " "
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, sep)
}

// Formatter pushes rendered frames to an output, reading the options from the
// configuration on every call.
type Formatter struct {
	cfg *config.Store
	out obdcan.Output
}

func New(cfg *config.Store, out obdcan.Output) *Formatter {
	return &Formatter{cfg: cfg, out: out}
}

func (f *Formatter) emit(kind Kind, msg *obdcan.CANFrame, num int) {
	for _, line := range Format(kind, msg, num, OptionsFrom(f.cfg)) {
		f.out.SendReply(line)
	}
}

// Reply renders a single frame
func (f *Formatter) Reply(msg *obdcan.CANFrame) {
	f.emit(SingleFrame, msg, 0)
}

func (f *Formatter) FirstFrame(msg *obdcan.CANFrame) {
	f.emit(FirstFrame, msg, 0)
}

func (f *Formatter) NextFrame(msg *obdcan.CANFrame, num int) {
	f.emit(ConsecutiveFrame, msg, num)
}
