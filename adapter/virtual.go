package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/roffe/obdcan"
)

func init() {
	if err := obdcan.RegisterDriver(&obdcan.DriverInfo{
		Name:        "virtual",
		Description: "simulated bus with an OBD ECU on 7E0/7E8",
		New: func(cfg *obdcan.DriverConfig) (obdcan.Driver, error) {
			v := NewVirtual(cfg)
			v.Attach(NewECU11(0x7E0, NewVehicle()))
			return v, nil
		},
	}); err != nil {
		panic(err)
	}
	if err := obdcan.RegisterDriver(&obdcan.DriverInfo{
		Name:        "virtual29",
		Description: "simulated bus with an OBD ECU on 18DA10F1/18DAF110",
		New: func(cfg *obdcan.DriverConfig) (obdcan.Driver, error) {
			v := NewVirtual(cfg)
			v.Attach(NewECU29(0x10, NewVehicle()))
			return v, nil
		},
	}); err != nil {
		panic(err)
	}
}

// Node is a simulated bus participant, it sees every frame sent by the tester
type Node interface {
	OnFrame(f *obdcan.CANFrame, bus *Virtual)
}

type scheduled struct {
	at time.Time
	f  *obdcan.CANFrame
}

// Virtual is an in-memory CAN driver. Frames injected by nodes become readable
// once the clock reaches their delivery time.
type Virtual struct {
	*obdcan.BaseDriver
	clock obdcan.Clock

	mu       sync.Mutex
	queue    []scheduled
	sent     []*obdcan.CANFrame
	nodes    []Node
	open     bool
	sendErr  error
	stuckBit int
}

func NewVirtual(cfg *obdcan.DriverConfig) *Virtual {
	if cfg == nil {
		cfg = &obdcan.DriverConfig{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = obdcan.SystemClock{}
	}
	return &Virtual{
		BaseDriver: obdcan.NewBaseDriver("virtual", cfg),
		clock:      clock,
		stuckBit:   -1,
	}
}

func (v *Virtual) Attach(n Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes = append(v.nodes, n)
}

func (v *Virtual) Open(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = true
	return nil
}

func (v *Virtual) Close() error {
	v.mu.Lock()
	v.open = false
	v.mu.Unlock()
	v.BaseDriver.Close()
	return nil
}

// Send records the frame and hands it to every attached node
func (v *Virtual) Send(f *obdcan.CANFrame) error {
	v.mu.Lock()
	if v.sendErr != nil {
		err := v.sendErr
		v.mu.Unlock()
		return err
	}
	cp := *f
	cp.FrameType = obdcan.Outgoing
	v.sent = append(v.sent, &cp)
	nodes := append([]Node(nil), v.nodes...)
	v.mu.Unlock()

	if v.Config().Debug {
		v.Debug(">> " + cp.String())
	}
	for _, n := range nodes {
		n.OnFrame(&cp, v)
	}
	return nil
}

// Inject schedules a frame for reception after delay
func (v *Virtual) Inject(f *obdcan.CANFrame, delay time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	at := v.clock.Now().Add(delay)
	// keep the queue ordered by delivery time, equal times keep insertion order
	i := len(v.queue)
	for i > 0 && v.queue[i-1].at.After(at) {
		i--
	}
	v.queue = append(v.queue, scheduled{})
	copy(v.queue[i+1:], v.queue[i:])
	v.queue[i] = scheduled{at: at, f: f}
}

func (v *Virtual) promote() {
	now := v.clock.Now()
	v.mu.Lock()
	var due []*obdcan.CANFrame
	for len(v.queue) > 0 && !v.queue[0].at.After(now) {
		due = append(due, v.queue[0].f)
		v.queue = v.queue[1:]
	}
	v.mu.Unlock()
	for _, f := range due {
		v.Deliver(f)
	}
}

func (v *Virtual) IsReady() bool {
	v.promote()
	return v.BaseDriver.IsReady()
}

func (v *Virtual) Read() *obdcan.CANFrame {
	v.promote()
	return v.BaseDriver.Read()
}

// Sent returns the frames sent so far
func (v *Virtual) Sent() []*obdcan.CANFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*obdcan.CANFrame(nil), v.sent...)
}

func (v *Virtual) ResetSent() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sent = nil
}

// Pending is the number of frames not yet delivered
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// FailSend makes every Send return err, nil restores normal operation
func (v *Virtual) FailSend(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sendErr = err
}

// StickBit simulates a wiring fault where the RX pin always reads b, -1 clears it
func (v *Virtual) StickBit(b int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stuckBit = b
}

func (v *Virtual) GetBit() int {
	v.mu.Lock()
	stuck := v.stuckBit
	v.mu.Unlock()
	if stuck >= 0 {
		return stuck
	}
	return v.BaseDriver.GetBit()
}
