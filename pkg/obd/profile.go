// Package obd routes OBD requests to the active protocol adapter, connecting
// or auto detecting first when needed, and renders the completion status.
package obd

import (
	"fmt"
	"sync"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/protocol"
)

// MaxRequestLen is the longest request accepted
const MaxRequestLen = 255

// probeCommand is the request that doubles as the connection probe
const probeCommand = "0100"

// Request is a completed command line
type Request interface {
	String() string
	Data() []byte
}

type rawRequest []byte

func (r rawRequest) String() string { return fmt.Sprintf("%X", []byte(r)) }
func (r rawRequest) Data() []byte   { return r }

// Bytes wraps a payload as a Request
func Bytes(b ...byte) Request {
	return rawRequest(b)
}

var messages = map[obdcan.Reply]string{
	obdcan.ReplyCmdWrong:        "?",
	obdcan.ReplyDataError:       "DATA ERROR",
	obdcan.ReplyNoData:          "NO DATA",
	obdcan.ReplyError:           "ERROR",
	obdcan.ReplyUnableToConnect: "UNABLE TO CONNECT",
	obdcan.ReplyBusBusy:         "BUS BUSY",
	obdcan.ReplyBusError:        "BUS ERROR",
	obdcan.ReplyChecksumError:   "DATA ERROR>",
	obdcan.ReplyWiringError:     "FB ERROR",
}

const programError = "Program Error"

// Message returns the text for a status, false for the silent ones
func Message(r obdcan.Reply) (string, bool) {
	switch r {
	case 0, obdcan.ReplyOK, obdcan.ReplyNone:
		return "", false
	}
	if msg, ok := messages[r]; ok {
		return msg, true
	}
	return fmt.Sprintf("%X ", int(r)) + programError, true
}

// Profile holds the current adapter, Auto until a protocol is known
type Profile struct {
	mu      sync.Mutex
	reg     *protocol.Registry
	env     *protocol.Env
	adapter protocol.Adapter
}

func New(reg *protocol.Registry) *Profile {
	return &Profile{
		reg:     reg,
		env:     reg.Env(),
		adapter: reg.Adapter(protocol.KindAuto),
	}
}

// Adapter returns the active adapter
func (p *Profile) Adapter() protocol.Adapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.adapter
}

// SetProtocol selects the adapter for a protocol number. With refresh set a
// change of adapter closes the old one and opens the new one.
func (p *Profile) SetProtocol(num int, refresh bool) obdcan.Reply {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setProtocol(num, refresh)
}

func (p *Profile) setProtocol(num int, refresh bool) obdcan.Reply {
	prev := p.adapter
	switch num {
	case protocol.ProtocolAuto:
		p.adapter = p.reg.Adapter(protocol.KindAuto)
	case protocol.ProtocolISO15765_11, protocol.ProtocolUserB:
		p.adapter = p.reg.Adapter(protocol.KindCAN)
	case protocol.ProtocolISO15765_29:
		p.adapter = p.reg.Adapter(protocol.KindCANExt)
	default:
		return obdcan.ReplyCmdWrong
	}
	if refresh && prev != p.adapter {
		prev.Close()
		p.adapter.Open()
	}
	return obdcan.ReplyOK
}

// OnRequest executes the request and reports the result
func (p *Profile) OnRequest(req Request) obdcan.Reply {
	result := p.Execute(req)
	p.Report(result)
	return result
}

// Report writes the text of a status, OK and NONE stay silent. Codes outside the
// table are written as hex followed by a generic error.
func (p *Profile) Report(result obdcan.Reply) {
	if msg, ok := Message(result); ok {
		p.env.Output.SendReply(msg)
	}
}

// Execute runs the request, connecting first when no adapter is connected
func (p *Profile) Execute(req Request) obdcan.Reply {
	p.mu.Lock()
	defer p.mu.Unlock()

	data := req.Data()
	if len(data) == 0 || len(data) > MaxRequestLen {
		return obdcan.ReplyDataError
	}
	if p.adapter.Connected() {
		return p.adapter.Request(data)
	}

	sendReply := req.String() == probeCommand
	auto := p.reg.Adapter(protocol.KindAuto)
	auto.SetSampleSent(false)

	var (
		proto     int
		sts       = obdcan.ReplyNoData
		connector protocol.Adapter
	)
	if p.adapter == auto {
		proto = auto.TryConnectECU(sendReply)
		sts = auto.Status()
		connector = auto
	} else {
		useAutoSP := p.env.Config.Bool(config.UseAutoSP)
		if useAutoSP {
			proto = p.adapter.TryConnectECU(sendReply)
		} else {
			proto = p.adapter.ConnectECU()
		}
		sts = p.adapter.Status()
		connector = p.adapter
		if proto == 0 && useAutoSP {
			proto = auto.TryConnectECU(sendReply)
			sts = auto.Status()
			connector = auto
		}
	}

	if proto == 0 {
		return sts
	}
	p.setProtocol(proto, false)
	if connector.SampleSent() {
		// the probe was the request itself and its reply is already out
		return obdcan.ReplyNone
	}
	p.env.Logger.Debugf("connected with protocol %d", proto)
	return p.adapter.Request(data)
}

func (p *Profile) Describe() {
	p.Adapter().Describe()
}

func (p *Profile) DescribeNum() {
	p.Adapter().DescribeNum()
}

func (p *Profile) DumpBuffer() {
	p.Adapter().DumpBuffer()
}

func (p *Profile) Protocol() int {
	return p.Adapter().Protocol()
}

// CloseProtocol drops the connection of the active adapter
func (p *Profile) CloseProtocol() {
	p.Adapter().Close()
}

// WiringCheck always runs on the CAN adapter
func (p *Profile) WiringCheck() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reg.Adapter(protocol.KindCAN).WiringCheck()
}

func (p *Profile) SetFilterAndMask() {
	p.Adapter().SetFilterAndMask()
}
