package adapter

import (
	"sync"
	"time"

	"github.com/roffe/obdcan"
)

// Handler answers a reassembled request with zero or more response payloads
type Handler interface {
	Handle(req []byte) [][]byte
}

type HandlerFunc func(req []byte) [][]byte

func (f HandlerFunc) Handle(req []byte) [][]byte {
	return f(req)
}

// ECU is a simulated ISO-TP responder living on a Virtual bus
type ECU struct {
	RequestIDs []uint32
	ResponseID uint32
	Extended   bool
	Handler    Handler

	// Latency is the delay before the first frame of an answer
	Latency time.Duration
	// FrameGap separates the frames of an answer
	FrameGap time.Duration
	// PendingDelay is added after each response pending reply
	PendingDelay time.Duration

	// Flow control sent in reply to a first frame from the tester
	FlowStatus    byte
	BlockSize     byte
	STmin         byte
	NoFlowControl bool

	mu           sync.Mutex
	rx           []byte
	rxLen        int
	rxSeq        byte
	txBuf        []byte
	txQueue      [][]byte
	requests     [][]byte
	flowControls []*obdcan.CANFrame
}

// NewECU11 creates an ECU answering the functional 7DF and its physical id
func NewECU11(physical uint32, h Handler) *ECU {
	return &ECU{
		RequestIDs: []uint32{0x7DF, physical},
		ResponseID: physical + 8,
		Handler:    h,
		Latency:    5 * time.Millisecond,
		FrameGap:   time.Millisecond,
	}
}

// NewECU29 creates an ECU with the given source address using normal fixed addressing
func NewECU29(addr byte, h Handler) *ECU {
	return &ECU{
		RequestIDs: []uint32{0x18DB33F1, 0x18DA00F1 | uint32(addr)<<8},
		ResponseID: 0x18DAF100 | uint32(addr),
		Extended:   true,
		Handler:    h,
		Latency:    5 * time.Millisecond,
		FrameGap:   time.Millisecond,
	}
}

func (e *ECU) accepts(f *obdcan.CANFrame) bool {
	if f.Extended != e.Extended {
		return false
	}
	for _, id := range e.RequestIDs {
		if f.Identifier == id {
			return true
		}
	}
	return false
}

// Requests returns the reassembled requests seen so far
func (e *ECU) Requests() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.requests...)
}

// FlowControls returns the flow control frames received from the tester
func (e *ECU) FlowControls() []*obdcan.CANFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*obdcan.CANFrame(nil), e.flowControls...)
}

func (e *ECU) frame(data ...byte) *obdcan.CANFrame {
	return obdcan.NewFrame(e.ResponseID, e.Extended, obdcan.FrameLen, data...)
}

func (e *ECU) OnFrame(f *obdcan.CANFrame, bus *Virtual) {
	if !e.accepts(f) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch f.Data[0] >> 4 {
	case 0x0:
		n := min(int(f.Data[0]&0x0F), obdcan.FrameLen-1)
		e.answer(append([]byte(nil), f.Data[1:1+n]...), bus)
	case 0x1:
		e.rxLen = int(f.Data[0]&0x0F)<<8 | int(f.Data[1])
		e.rx = append(e.rx[:0], f.Data[2:]...)
		e.rxSeq = 1
		if !e.NoFlowControl {
			bus.Inject(e.frame(0x30|e.FlowStatus, e.BlockSize, e.STmin), e.Latency)
		}
	case 0x2:
		if e.rx == nil || f.Data[0]&0x0F != e.rxSeq&0x0F {
			e.rx = nil
			return
		}
		e.rxSeq++
		n := min(e.rxLen-len(e.rx), obdcan.FrameLen-1)
		e.rx = append(e.rx, f.Data[1:1+n]...)
		if len(e.rx) >= e.rxLen {
			req := e.rx[:e.rxLen]
			e.rx = nil
			e.answer(req, bus)
		}
	case 0x3:
		e.flowControls = append(e.flowControls, f)
		if e.txBuf == nil || f.Data[0]&0x0F != 0 {
			return
		}
		delay := e.FrameGap
		seq := byte(0x21)
		for len(e.txBuf) > 0 {
			n := min(len(e.txBuf), obdcan.FrameLen-1)
			bus.Inject(e.frame(append([]byte{seq}, e.txBuf[:n]...)...), delay)
			e.txBuf = e.txBuf[n:]
			delay += e.FrameGap
			seq++
			if seq > 0x2F {
				seq = 0x20
			}
		}
		e.txBuf = nil
		queue := e.txQueue
		e.txQueue = nil
		e.transmit(queue, delay, bus)
	}
}

func (e *ECU) answer(req []byte, bus *Virtual) {
	e.requests = append(e.requests, req)
	if e.Handler == nil {
		return
	}
	e.transmit(e.Handler.Handle(req), e.Latency, bus)
}

// transmit schedules answers starting at delay, a multi frame answer stops at
// its first frame until the tester's flow control arrives.
func (e *ECU) transmit(answers [][]byte, delay time.Duration, bus *Virtual) {
	for i, p := range answers {
		if len(p) <= 7 {
			bus.Inject(e.frame(append([]byte{byte(len(p))}, p...)...), delay)
			delay += e.FrameGap
			if len(p) >= 3 && p[0] == 0x7F && p[2] == 0x78 {
				delay += e.PendingDelay
			}
			continue
		}
		bus.Inject(e.frame(append([]byte{0x10 | byte(len(p)>>8&0x0F), byte(len(p))}, p[:6]...)...), delay)
		e.txBuf = append([]byte(nil), p[6:]...)
		e.txQueue = answers[i+1:]
		return
	}
}
