package protocol

import (
	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
)

// Auto carries no session of its own, it finds the protocol by probing the CAN
// variants in order.
type Auto struct {
	state
	reg *Registry
}

func newAuto(env *Env, reg *Registry) *Auto {
	return &Auto{state: newState(env), reg: reg}
}

// ConnectECU cannot pick a protocol without probing
func (a *Auto) ConnectECU() int {
	return 0
}

func (a *Auto) TryConnectECU(sendReply bool) int {
	a.connected = false
	a.status = obdcan.ReplyNoData
	a.sampleSent = false

	for _, k := range []Kind{KindCAN, KindCANExt} {
		if p := a.doConnect(k, sendReply); p != 0 {
			return p
		}
	}
	return 0
}

func (a *Auto) doConnect(k Kind, sendReply bool) int {
	adapter := a.reg.Adapter(k)
	p := adapter.TryConnectECU(sendReply)
	a.sampleSent = adapter.SampleSent()
	if p != 0 {
		a.status = adapter.Status()
		a.env.Logger.Debugf("auto: connected using %s, protocol %d", k, p)
		return p
	}
	return 0
}

func (a *Auto) Request(data []byte) obdcan.Reply {
	return obdcan.ReplyNoData
}

func (a *Auto) Describe() {
	a.env.Output.SendReply("AUTO")
}

func (a *Auto) DescribeNum() {
	if a.env.Config.Bool(config.UseAutoSP) {
		a.env.Output.SendReply("A0")
		return
	}
	a.env.Output.SendReply("0")
}

func (a *Auto) Open() {
	a.connected = false
}

func (a *Auto) WiringCheck() {
	a.reg.Adapter(KindCAN).WiringCheck()
}

func (a *Auto) Protocol() int {
	return ProtocolAuto
}

func (a *Auto) SetFilterAndMask() {}
