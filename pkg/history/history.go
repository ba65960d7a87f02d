// Package history keeps the most recent CAN traffic for the buffer dump command
// and trace export.
package history

import (
	"fmt"
	"io"
	"sync"

	"github.com/roffe/obdcan"
	"github.com/vmihailenco/msgpack/v5"
)

const DefaultCapacity = 64

type Entry struct {
	Frame    obdcan.CANFrame
	Outgoing bool
	Num      uint32
}

// Log is a fixed capacity ring, the oldest entry is overwritten when full
type Log struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	num     uint32
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Add records a copy of the frame
func (l *Log) Add(f *obdcan.CANFrame, outgoing bool) {
	if l == nil || f == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.num++
	l.entries[l.next] = Entry{Frame: *f, Outgoing: outgoing, Num: l.num}
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Entries returns the recorded frames oldest first
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	if l.full {
		out = append(out, l.entries[l.next:]...)
	}
	return append(out, l.entries[:l.next]...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 0
	l.full = false
	l.num = 0
}

func (e Entry) String() string {
	f := e.Frame
	if e.Outgoing {
		f.FrameType = obdcan.Outgoing
	} else {
		f.FrameType = obdcan.Incoming
	}
	return fmt.Sprintf("%04d %s", e.Num, f.String())
}

func (e Entry) ColorString() string {
	f := e.Frame
	if e.Outgoing {
		f.FrameType = obdcan.Outgoing
	} else {
		f.FrameType = obdcan.Incoming
	}
	return fmt.Sprintf("%04d %s", e.Num, f.ColorString())
}

// Dump writes one line per entry to the output
func (l *Log) Dump(out obdcan.Output, colored bool) {
	for _, e := range l.Entries() {
		if colored {
			out.SendReply(e.ColorString())
		} else {
			out.SendReply(e.String())
		}
	}
}

// Record is the serialized form of an entry
type Record struct {
	Num        uint32 `msgpack:"num"`
	Outgoing   bool   `msgpack:"out"`
	Identifier uint32 `msgpack:"id"`
	Extended   bool   `msgpack:"ext"`
	Data       []byte `msgpack:"data"`
}

// Export writes the entries as a msgpack encoded array of records
func (l *Log) Export(w io.Writer) error {
	entries := l.Entries()
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, Record{
			Num:        e.Num,
			Outgoing:   e.Outgoing,
			Identifier: e.Frame.Identifier,
			Extended:   e.Frame.Extended,
			Data:       append([]byte(nil), e.Frame.Payload()...),
		})
	}
	return msgpack.NewEncoder(w).Encode(records)
}

// Import decodes a trace written by Export
func Import(r io.Reader) ([]Record, error) {
	var records []Record
	if err := msgpack.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return records, nil
}

// Frame rebuilds the CAN frame of a record
func (r Record) Frame() *obdcan.CANFrame {
	f := obdcan.NewFrame(r.Identifier, r.Extended, uint8(len(r.Data)), r.Data...)
	if !r.Outgoing {
		f.FrameType = obdcan.Incoming
	}
	return f
}
