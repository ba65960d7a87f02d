package isotp

import (
	"errors"
	"testing"
	"time"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/adapter"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/formatter"
	"github.com/roffe/obdcan/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAddr struct {
	exact bool
	noFC  bool
}

func (testAddr) ID() uint32     { return 0x7E0 }
func (testAddr) Extended() bool { return false }
func (a testAddr) ExactDLC() bool {
	return a.exact
}

func (a testAddr) FlowControl(first *obdcan.CANFrame) (*obdcan.CANFrame, bool) {
	if a.noFC {
		return nil, false
	}
	return obdcan.NewFrame(0x7E0|first.Identifier&0x07, false, 8, 0x30), true
}

type rig struct {
	cfg     *config.Store
	clock   *obdcan.ManualClock
	bus     *adapter.Virtual
	ecu     *adapter.ECU
	vehicle *adapter.Vehicle
	out     *obdcan.Transcript
	hist    *history.Log
	tp      *Transport
}

func newRig(t *testing.T, addr Addressing) *rig {
	t.Helper()
	r := &rig{
		cfg:     config.New(),
		clock:   obdcan.NewManualClock(),
		vehicle: adapter.NewVehicle(),
		out:     &obdcan.Transcript{},
		hist:    history.New(256),
	}
	r.bus = adapter.NewVirtual(&obdcan.DriverConfig{Clock: r.clock})
	r.bus.SetFilterAndMask(0x7E8, 0x7F8, false)
	r.ecu = adapter.NewECU11(0x7E0, r.vehicle)
	r.bus.Attach(r.ecu)
	r.tp = New(addr, r.cfg, r.bus,
		OptClock(r.clock),
		OptHistory(r.hist),
		OptFormatter(formatter.New(r.cfg, r.out)),
	)
	return r
}

func TestSendSingleFrame(t *testing.T) {
	tests := []struct {
		name    string
		addr    testAddr
		setup   func(cfg *config.Store)
		payload []byte
		want    []byte
		dlc     uint8
	}{
		{
			name:    "caf on",
			payload: []byte{0x01, 0x00},
			want:    []byte{0x02, 0x01, 0x00, 0, 0, 0, 0, 0},
			dlc:     8,
		},
		{
			name:    "exact dlc",
			addr:    testAddr{exact: true},
			payload: []byte{0x01, 0x00},
			want:    []byte{0x02, 0x01, 0x00},
			dlc:     3,
		},
		{
			name:    "caf off",
			setup:   func(cfg *config.Store) { cfg.SetBool(config.CanCAF, false) },
			payload: []byte{0x02, 0x01, 0x0D},
			want:    []byte{0x02, 0x01, 0x0D, 0, 0, 0, 0, 0},
			dlc:     8,
		},
		{
			name: "extended address",
			setup: func(cfg *config.Store) {
				cfg.SetBytes(config.CanExt, config.MustByteArray(0xF1))
			},
			payload: []byte{0x01, 0x0C},
			want:    []byte{0xF1, 0x02, 0x01, 0x0C, 0, 0, 0, 0},
			dlc:     8,
		},
		{
			name:    "seven bytes still fit",
			payload: []byte{1, 2, 3, 4, 5, 6, 7},
			want:    []byte{0x07, 1, 2, 3, 4, 5, 6, 7},
			dlc:     8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.addr)
			if tt.setup != nil {
				tt.setup(r.cfg)
			}
			require.NoError(t, r.tp.Send(tt.payload))
			sent := r.bus.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, uint32(0x7E0), sent[0].Identifier)
			assert.Equal(t, tt.dlc, sent[0].DLC)
			assert.Equal(t, tt.want, sent[0].Payload())
			assert.Equal(t, 1, r.hist.Len())
		})
	}
}

func TestSendMultiFrame(t *testing.T) {
	r := newRig(t, testAddr{})
	r.ecu.Handler = nil

	payload := make([]byte, 6+7*17)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, r.tp.Send(payload))

	sent := r.bus.Sent()
	require.Len(t, sent, 1+ConsecutiveFrameCount(len(payload), false))
	first := sent[0]
	assert.Equal(t, byte(0x10), first.Data[0]&0xF0)
	assert.Equal(t, len(payload), int(first.Data[0]&0x0F)<<8|int(first.Data[1]))
	assert.Equal(t, payload[:6], first.Data[2:])

	for i, f := range sent[1:] {
		assert.Equal(t, byte(0x20), f.Data[0]&0xF0)
		assert.Equal(t, byte((i+1)%16), f.Data[0]&0x0F, "frame %d", i+1)
		assert.Equal(t, uint8(8), f.DLC)
	}

	reqs := r.ecu.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, payload, reqs[0])
}

func TestSendMultiFrameShortLastFrame(t *testing.T) {
	r := newRig(t, testAddr{})
	r.ecu.Handler = nil
	r.ecu.STmin = 10

	payload := []byte{0x3B, 0x90, 0x31, 0x47, 0x31, 0x4A, 0x43, 0x35, 0x34, 0x34, 0x34, 0x52, 0x37, 0x32, 0x35}
	start := r.clock.Now()
	require.NoError(t, r.tp.Send(payload))

	sent := r.bus.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, uint8(8), sent[1].DLC)
	assert.Equal(t, uint8(3), sent[2].DLC)
	assert.Equal(t, []byte{0x22, 0x32, 0x35}, sent[2].Payload())
	// STmin is waited after every consecutive frame, the last one included
	assert.GreaterOrEqual(t, r.clock.Now().Sub(start), 20*time.Millisecond)
	assert.Equal(t, [][]byte{payload}, r.ecu.Requests())
}

func TestSendMultiFrameExtendedAddress(t *testing.T) {
	r := newRig(t, testAddr{})
	r.cfg.SetBytes(config.CanExt, config.MustByteArray(0xF1))
	r.ecu.NoFlowControl = true

	// flow control with the extended address byte in front
	r.bus.Inject(obdcan.NewFrame(0x7E8, false, 8, 0xF1, 0x30, 0x00, 0x00), 2*time.Millisecond)
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, r.tp.Send(payload))

	sent := r.bus.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0xF1, 0x10, 0x08, 1, 2, 3, 4, 5}, sent[0].Payload())
	assert.Equal(t, []byte{0xF1, 0x21, 6, 7, 8}, sent[1].Payload())
}

func TestSendFlowControlFailures(t *testing.T) {
	payload := make([]byte, 20)

	t.Run("not ready", func(t *testing.T) {
		r := newRig(t, testAddr{})
		r.ecu.FlowStatus = 1
		err := r.tp.Send(payload)
		assert.ErrorIs(t, err, ErrFlowStatus)
		assert.Len(t, r.bus.Sent(), 1)
	})

	t.Run("overflow", func(t *testing.T) {
		r := newRig(t, testAddr{})
		r.ecu.FlowStatus = 2
		assert.ErrorIs(t, r.tp.Send(payload), ErrFlowStatus)
	})

	t.Run("no flow control", func(t *testing.T) {
		r := newRig(t, testAddr{})
		r.ecu.NoFlowControl = true
		start := r.clock.Now()
		assert.ErrorIs(t, r.tp.Send(payload), ErrNoFlowControl)
		assert.Len(t, r.bus.Sent(), 1)
		assert.GreaterOrEqual(t, r.clock.Now().Sub(start), DefaultP2)
	})

	t.Run("too long", func(t *testing.T) {
		r := newRig(t, testAddr{})
		assert.ErrorIs(t, r.tp.Send(make([]byte, MaxMessageLen+1)), ErrPayloadTooLong)
		assert.Empty(t, r.bus.Sent())
	})

	t.Run("driver failure", func(t *testing.T) {
		r := newRig(t, testAddr{})
		busErr := errors.New("bus off")
		r.bus.FailSend(busErr)
		assert.ErrorIs(t, r.tp.Send([]byte{0x01, 0x00}), busErr)
	})
}

func TestP2(t *testing.T) {
	r := newRig(t, testAddr{})
	assert.Equal(t, DefaultP2, r.tp.P2())
	r.cfg.SetInt(config.Timeout, 0x32)
	assert.Equal(t, 200*time.Millisecond, r.tp.P2())
	r.cfg.SetInt(config.CanTimeoutMult, 2)
	assert.Equal(t, 400*time.Millisecond, r.tp.P2())
	r.cfg.SetInt(config.CanTimeoutMult, 0)
	assert.Equal(t, 200*time.Millisecond, r.tp.P2())
}

func TestReceiveSingleFrame(t *testing.T) {
	r := newRig(t, testAddr{})
	require.NoError(t, r.tp.Send([]byte{0x01, 0x00}))
	assert.True(t, r.tp.Receive(true))
	assert.Equal(t, []string{"41 00 BE 1F A8 13"}, r.out.Lines())
	assert.Equal(t, 2, r.hist.Len())
}

func TestReceiveNoData(t *testing.T) {
	r := newRig(t, testAddr{})
	start := r.clock.Now()
	assert.False(t, r.tp.Receive(true))
	assert.Empty(t, r.out.Lines())
	assert.GreaterOrEqual(t, r.clock.Now().Sub(start), DefaultP2)
	assert.Less(t, r.clock.Now().Sub(start), DefaultP2+10*time.Millisecond)
}

func TestReceiveMultiFrame(t *testing.T) {
	r := newRig(t, testAddr{})
	require.NoError(t, r.tp.Send([]byte{0x09, 0x02}))
	assert.True(t, r.tp.Receive(true))
	assert.Equal(t, []string{
		"014",
		"0: 49 02 01 31 47 31",
		"1: 4A 43 35 34 34 34 52",
		"2: 37 32 35 32 33 36 37",
	}, r.out.Lines())

	fcs := r.ecu.FlowControls()
	require.Len(t, fcs, 1)
	assert.Equal(t, uint32(0x7E0), fcs[0].Identifier)
	assert.Equal(t, byte(0x30), fcs[0].Data[0])
}

func TestReceiveWithoutReply(t *testing.T) {
	r := newRig(t, testAddr{})
	require.NoError(t, r.tp.Send([]byte{0x09, 0x02}))
	assert.True(t, r.tp.Receive(false))
	assert.Empty(t, r.out.Lines())
	assert.Empty(t, r.ecu.FlowControls())
}

func TestReceiveSkipsFlowControlWhenDisabled(t *testing.T) {
	r := newRig(t, testAddr{noFC: true})
	require.NoError(t, r.tp.Send([]byte{0x09, 0x02}))
	assert.True(t, r.tp.Receive(true))
	// the first frame is still reported, the rest never comes
	assert.Equal(t, []string{"014", "0: 49 02 01 31 47 31"}, r.out.Lines())
}

func TestReceiveResponsePending(t *testing.T) {
	r := newRig(t, testAddr{})
	r.vehicle.PendingReplies = 2
	r.ecu.PendingDelay = time.Second

	require.NoError(t, r.tp.Send([]byte{0x01, 0x0D}))
	start := r.clock.Now()
	assert.True(t, r.tp.Receive(true))
	assert.Equal(t, []string{"7F 01 78", "7F 01 78", "41 0D 00"}, r.out.Lines())
	assert.GreaterOrEqual(t, r.clock.Now().Sub(start), 2*time.Second)
}

func TestReceivePendingLimit(t *testing.T) {
	r := newRig(t, testAddr{})
	r.vehicle.PendingReplies = MaxPendingResponses + 3
	r.ecu.PendingDelay = time.Second

	require.NoError(t, r.tp.Send([]byte{0x01, 0x0D}))
	start := r.clock.Now()
	assert.True(t, r.tp.Receive(true))

	// the reply after the last granted extension only gets P2, the next one is too late
	lines := r.out.Lines()
	require.Len(t, lines, MaxPendingResponses+1)
	for _, l := range lines {
		assert.Equal(t, "7F 01 78", l)
	}
	assert.NotContains(t, lines, "41 0D 00")
	assert.Less(t, r.clock.Now().Sub(start), time.Duration(MaxPendingResponses+2)*time.Second)
}

func TestReceivePendingWithoutP2Star(t *testing.T) {
	r := newRig(t, testAddr{})
	// a plain negative response does not extend the wait
	r.ecu.Handler = adapter.HandlerFunc(func(req []byte) [][]byte {
		return [][]byte{{0x7F, req[0], 0x21}, {0x41, 0x0D, 0x10}}
	})
	r.ecu.FrameGap = time.Second

	require.NoError(t, r.tp.Send([]byte{0x01, 0x0D}))
	assert.True(t, r.tp.Receive(true))
	assert.Equal(t, []string{"7F 01 21"}, r.out.Lines())
}
