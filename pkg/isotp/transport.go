package isotp

import (
	"fmt"
	"time"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/history"
)

// Addressing supplies what differs between the 11 and 29 bit variants
type Addressing interface {
	// ID is the identifier requests are sent with
	ID() uint32
	Extended() bool
	// ExactDLC reports if single frames use the framed length as DLC instead of 8
	ExactDLC() bool
	// FlowControl builds the reply to a received first frame, false skips it
	FlowControl(first *obdcan.CANFrame) (*obdcan.CANFrame, bool)
}

// Formatter receives the frames of a response
type Formatter interface {
	Reply(msg *obdcan.CANFrame)
	FirstFrame(msg *obdcan.CANFrame)
	NextFrame(msg *obdcan.CANFrame, num int)
}

type Transport struct {
	addr    Addressing
	cfg     *config.Store
	drv     obdcan.Driver
	history *history.Log
	clock   obdcan.Clock
	fmt     Formatter
	log     obdcan.Logger
}

type Opt func(*Transport)

func OptHistory(h *history.Log) Opt {
	return func(t *Transport) {
		t.history = h
	}
}

func OptClock(c obdcan.Clock) Opt {
	return func(t *Transport) {
		t.clock = c
	}
}

func OptFormatter(f Formatter) Opt {
	return func(t *Transport) {
		t.fmt = f
	}
}

func OptLogger(l obdcan.Logger) Opt {
	return func(t *Transport) {
		t.log = l
	}
}

func New(addr Addressing, cfg *config.Store, drv obdcan.Driver, opts ...Opt) *Transport {
	t := &Transport{
		addr:  addr,
		cfg:   cfg,
		drv:   drv,
		clock: obdcan.SystemClock{},
		log:   obdcan.NopLogger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Transport) extAddr() (byte, bool) {
	ext := t.cfg.Bytes(config.CanExt)
	if ext.Len == 0 {
		return 0, false
	}
	return ext.Data[0], true
}

// P2 is the response timeout, timeout x 4ms x multiplier when configured
func (t *Transport) P2() time.Duration {
	timeout := t.cfg.Int(config.Timeout)
	if timeout == 0 {
		return DefaultP2
	}
	mult := t.cfg.Int(config.CanTimeoutMult)
	if mult < 1 {
		mult = 1
	}
	return time.Duration(timeout*4*mult) * time.Millisecond
}

// SendFrame transmits one frame with the request identifier
func (t *Transport) SendFrame(data []byte, dlc uint8) error {
	f := obdcan.NewFrame(t.addr.ID(), t.addr.Extended(), dlc, data...)
	return t.transmit(f)
}

func (t *Transport) transmit(f *obdcan.CANFrame) error {
	t.history.Add(f, true)
	if err := t.drv.Send(f); err != nil {
		return fmt.Errorf("send %s: %w", obdcan.IDString(f.Identifier, f.Extended), err)
	}
	return nil
}

// Send transmits a payload, as a single frame when it fits, otherwise as a first
// frame followed by consecutive frames paced by the receiver's flow control.
func (t *Transport) Send(payload []byte) error {
	if len(payload) > MaxMessageLen {
		return ErrPayloadTooLong
	}
	caf := t.cfg.Bool(config.CanCAF)
	ext, extAddr := t.extAddr()

	total := len(payload) + 1
	if extAddr {
		total++
	}
	if !caf {
		total--
	}
	if total > obdcan.FrameLen {
		return t.sendMultiFrame(payload, ext, extAddr)
	}

	data := make([]byte, 0, obdcan.FrameLen)
	if extAddr {
		data = append(data, ext)
	}
	if caf {
		data = append(data, byte(len(payload)))
	}
	data = append(data, payload...)
	dlc := uint8(obdcan.FrameLen)
	if t.addr.ExactDLC() {
		dlc = uint8(total)
	}
	return t.SendFrame(data, dlc)
}

func (t *Transport) sendMultiFrame(payload []byte, ext byte, extAddr bool) error {
	length := len(payload)
	data := make([]byte, 0, obdcan.FrameLen)
	if extAddr {
		data = append(data, ext)
	}
	data = append(data, 0x10|byte(length>>8&0x0F), byte(length))
	sent := copy(data[len(data):cap(data)], payload)
	data = data[:len(data)+sent]
	if err := t.SendFrame(data, obdcan.FrameLen); err != nil {
		return err
	}

	fc, err := t.receiveControlFrame(extAddr)
	if err != nil {
		return err
	}
	if fc.Status != 0 {
		return fmt.Errorf("%w: flow status %d", ErrFlowStatus, fc.Status)
	}
	t.log.Debugf("flow control bs=%d stmin=%d", fc.BlockSize, fc.STmin)

	chunk := 7
	if extAddr {
		chunk = 6
	}
	sn := byte(seqStart)
	for sent < length {
		n := min(chunk, length-sent)
		data = data[:0]
		if extAddr {
			data = append(data, ext)
		}
		data = append(data, sn)
		data = append(data, payload[sent:sent+n]...)
		if err := t.SendFrame(data, uint8(len(data))); err != nil {
			return err
		}
		sent += n
		sn = NextSequence(sn)
		if fc.STmin > 0 {
			t.clock.Sleep(fc.SeparationTime())
		}
	}
	return nil
}

// receiveControlFrame waits one P2 period for a flow control frame, other
// frames are logged and skipped.
func (t *Transport) receiveControlFrame(extAddr bool) (FlowControl, error) {
	offset := 0
	if extAddr {
		offset = 1
	}
	timer := obdcan.NewTimer(t.clock)
	timer.Start(t.P2())
	for !timer.Expired() {
		f := t.poll()
		if f == nil {
			continue
		}
		if PCIType(f.Data[:], offset) == PCIFlowControl {
			return FlowControl{
				Status:    f.Data[offset] & 0x0F,
				BlockSize: f.Data[offset+1],
				STmin:     f.Data[offset+2],
			}, nil
		}
	}
	return FlowControl{}, ErrNoFlowControl
}

// poll returns the next frame, logged to history, or sleeps one poll interval
func (t *Transport) poll() *obdcan.CANFrame {
	if !t.drv.IsReady() {
		t.clock.Sleep(pollInterval)
		return nil
	}
	f := t.drv.Read()
	if f == nil {
		return nil
	}
	t.history.Add(f, false)
	return f
}

// Receive collects response frames until P2 passes without traffic. Every frame
// reloads the timer, a response pending reply reloads it with P2Star. With reply
// set the frames are handed to the formatter and first frames get a flow control
// answer. The result reports if any frame was seen.
func (t *Transport) Receive(reply bool) bool {
	_, extAddr := t.extAddr()
	offset := 0
	if extAddr {
		offset = 1
	}
	p2 := t.P2()
	pending := 0
	frameNum := 0
	received := false

	timer := obdcan.NewTimer(t.clock)
	timer.Start(p2)
	for !timer.Expired() {
		f := t.poll()
		if f == nil {
			continue
		}
		if IsResponsePending(f.Data[:], offset) && pending < MaxPendingResponses {
			pending++
			timer.Start(P2Star)
			t.log.Debugf("response pending (%d)", pending)
		} else {
			timer.Start(p2)
		}

		received = true
		if !reply || t.fmt == nil {
			continue
		}
		switch PCIType(f.Data[:], offset) {
		case PCISingleFrame:
			t.fmt.Reply(f)
		case PCIFirstFrame:
			t.sendFlowControl(f)
			t.fmt.FirstFrame(f)
		case PCIConsecutiveFrame:
			frameNum++
			t.fmt.NextFrame(f, frameNum)
		default:
			t.fmt.Reply(f)
		}
	}
	return received
}

func (t *Transport) sendFlowControl(first *obdcan.CANFrame) {
	fc, ok := t.addr.FlowControl(first)
	if !ok {
		return
	}
	if err := t.transmit(fc); err != nil {
		t.log.Debugf("flow control: %v", err)
	}
}
