package obdcan

import (
	"log"
	"path/filepath"
	"runtime"
	"sync"
)

// BaseDriver carries the plumbing shared by drivers that receive frames on a
// goroutine: the receive queue, software acceptance filtering, the seen-count and
// the error/event channels.
type BaseDriver struct {
	name     string
	cfg      *DriverConfig
	recvChan chan *CANFrame

	mu       sync.Mutex
	filter   uint32
	mask     uint32
	extended bool
	pending  *CANFrame
	seen     uint32
	bitBang  bool
	bit      int

	errOnce sync.Once
	errChan chan error

	evtChan chan Event

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewBaseDriver(name string, cfg *DriverConfig) *BaseDriver {
	return &BaseDriver{
		name:      name,
		cfg:       cfg,
		recvChan:  make(chan *CANFrame, 1024),
		errChan:   make(chan error, 1),
		evtChan:   make(chan Event, 100),
		closeChan: make(chan struct{}),
		bit:       1,
	}
}

// Name returns the driver name.
func (base *BaseDriver) Name() string {
	return base.name
}

// Config returns the config the driver was created with
func (base *BaseDriver) Config() *DriverConfig {
	return base.cfg
}

// Deliver queues a received frame, frames are dropped with an error event when the queue is full.
func (base *BaseDriver) Deliver(f *CANFrame) {
	f.FrameType = Incoming
	select {
	case base.recvChan <- f:
	default:
		base.Error(ErrDroppedFrame)
	}
}

// Done is closed when the driver is closed
func (base *BaseDriver) Done() <-chan struct{} {
	return base.closeChan
}

func (base *BaseDriver) SetFilterAndMask(filter, mask uint32, extended bool) {
	base.mu.Lock()
	defer base.mu.Unlock()
	base.filter, base.mask, base.extended = filter, mask, extended
}

// Accept reports if the frame passes the acceptance filter
func (base *BaseDriver) Accept(f *CANFrame) bool {
	base.mu.Lock()
	defer base.mu.Unlock()
	return Accept(f, base.filter, base.mask, base.extended)
}

// Accept applies a CAN acceptance filter, a zero mask lets every frame of the
// configured identifier width through.
func Accept(f *CANFrame, filter, mask uint32, extended bool) bool {
	if f.Extended != extended {
		return false
	}
	return f.Identifier&mask == filter&mask
}

func (base *BaseDriver) IsReady() bool {
	base.mu.Lock()
	ready := base.pending != nil
	base.mu.Unlock()
	if ready {
		return true
	}
	for {
		select {
		case f := <-base.recvChan:
			if !base.Accept(f) {
				continue
			}
			base.mu.Lock()
			base.pending = f
			base.mu.Unlock()
			return true
		default:
			return false
		}
	}
}

func (base *BaseDriver) Read() *CANFrame {
	if !base.IsReady() {
		return nil
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	f := base.pending
	base.pending = nil
	base.seen++
	f.Seq = base.seen
	return f
}

func (base *BaseDriver) SetBitBang(enabled bool) {
	base.mu.Lock()
	defer base.mu.Unlock()
	base.bitBang = enabled
}

// SetBit drives the TX pin, drivers without pin access loop it back to GetBit.
func (base *BaseDriver) SetBit(v int) {
	base.mu.Lock()
	defer base.mu.Unlock()
	if base.bitBang {
		base.bit = v
	}
}

func (base *BaseDriver) GetBit() int {
	base.mu.Lock()
	defer base.mu.Unlock()
	return base.bit
}

// Return the error channel for the driver
func (base *BaseDriver) Err() <-chan error {
	return base.errChan
}

func (base *BaseDriver) Event() <-chan Event {
	return base.evtChan
}

func (base *BaseDriver) Close() {
	base.closeOnce.Do(func() {
		close(base.closeChan)
		select {
		case base.errChan <- nil:
		default:
			log.Println("failed to send <nil> to errchan")
		}
	})
}

// Set a fatal driver error, meaning communication is broken and cannot continue.
func (base *BaseDriver) Fatal(err error) {
	base.errOnce.Do(func() {
		select {
		case base.errChan <- err:
		default:
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s:%d error channel full: %v\n", filepath.Base(file), no, err)
			} else {
				log.Printf("error channel full: %v", err)
			}
		}
	})
}

func (base *BaseDriver) sendEvent(eventType EventType, details string) {
	select {
	case base.evtChan <- Event{Driver: base.name, Type: eventType, Details: details}:
	default:
		_, file, no, ok := runtime.Caller(2)
		if ok {
			log.Printf("%s#%d event channel full: %s\n", filepath.Base(file), no, details)
		} else {
			log.Printf("event channel full: %s", details)
		}
	}
}

// Send an error event
func (base *BaseDriver) Error(err error) {
	base.sendEvent(EventTypeError, err.Error())
}

// Send a warning event
func (base *BaseDriver) Warn(warn string) {
	base.sendEvent(EventTypeWarning, warn)
}

// Send an info event
func (base *BaseDriver) Info(info string) {
	base.sendEvent(EventTypeInfo, info)
}

// Send a debug event
func (base *BaseDriver) Debug(debug string) {
	base.sendEvent(EventTypeDebug, debug)
}
