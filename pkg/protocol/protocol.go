// Package protocol holds the protocol adapters the OBD profile routes requests
// through: the ISO 15765-4 CAN variants and the auto detecting adapter.
package protocol

import (
	"io"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/history"
)

// Protocol numbers as used by ATSP
const (
	ProtocolAuto          = 0
	ProtocolISO15765_11   = 6 // 11 bit, 500 kbaud
	ProtocolISO15765_29   = 7 // 29 bit, 500 kbaud
	ProtocolISO15765_1125 = 8
	ProtocolISO15765_2925 = 9
	ProtocolUserB         = 0x0B
)

// Kind selects one of the adapter singletons
type Kind int

const (
	KindAuto Kind = iota + 1
	KindCAN
	KindCANExt
)

func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindCAN:
		return "can"
	case KindCANExt:
		return "can-ext"
	}
	return "unknown"
}

// Env is the process wide context shared by the adapters
type Env struct {
	Config  *config.Store
	Driver  obdcan.Driver
	History *history.Log
	Clock   obdcan.Clock
	Output  obdcan.Output
	Logger  obdcan.Logger
}

func (e *Env) defaults() {
	if e.Config == nil {
		e.Config = config.New()
	}
	if e.History == nil {
		e.History = history.New(history.DefaultCapacity)
	}
	if e.Clock == nil {
		e.Clock = obdcan.SystemClock{}
	}
	if e.Output == nil {
		e.Output = obdcan.NewWriterOutput(io.Discard, "")
	}
	if e.Logger == nil {
		e.Logger = obdcan.NopLogger
	}
}

// Adapter is implemented by every protocol variant
type Adapter interface {
	// ConnectECU marks the adapter connected without bus traffic and returns its protocol
	ConnectECU() int
	// TryConnectECU probes the bus, it returns the protocol on success and 0 otherwise
	TryConnectECU(sendReply bool) int
	Request(data []byte) obdcan.Reply
	Describe()
	DescribeNum()
	DumpBuffer()
	Open()
	Close()
	WiringCheck()
	Protocol() int
	SetFilterAndMask()

	SampleSent() bool
	SetSampleSent(bool)
	Connected() bool
	Status() obdcan.Reply
}

type state struct {
	env        *Env
	connected  bool
	status     obdcan.Reply
	sampleSent bool
}

func newState(env *Env) state {
	return state{env: env, status: obdcan.ReplyNoData}
}

func (s *state) Connected() bool         { return s.connected }
func (s *state) Status() obdcan.Reply    { return s.status }
func (s *state) SampleSent() bool        { return s.sampleSent }
func (s *state) SetSampleSent(sent bool) { s.sampleSent = sent }

func (s *state) Close() {
	s.connected = false
	s.status = obdcan.ReplyNoData
	s.sampleSent = false
}

func (s *state) DumpBuffer() {
	s.env.History.Dump(s.env.Output, false)
}

// Registry owns one instance of each adapter
type Registry struct {
	env   *Env
	auto  *Auto
	can11 *ISOCAN
	can29 *ISOCAN
}

func NewRegistry(env *Env) *Registry {
	env.defaults()
	r := &Registry{env: env}
	r.can11 = NewISOCAN11(env)
	r.can29 = NewISOCAN29(env)
	r.auto = newAuto(env, r)
	return r
}

// Adapter returns the singleton of a kind, nil if the kind is unknown
func (r *Registry) Adapter(k Kind) Adapter {
	switch k {
	case KindAuto:
		return r.auto
	case KindCAN:
		return r.can11
	case KindCANExt:
		return r.can29
	}
	return nil
}

func (r *Registry) Env() *Env {
	return r.env
}
