package protocol

import (
	"time"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/formatter"
	"github.com/roffe/obdcan/pkg/isotp"
)

// variant is what the 11 and 29 bit adapters do differently
type variant interface {
	isotp.Addressing
	Protocol() int
	// probeProtocol is reported after a successful probe
	probeProtocol() int
	filterAndMask() (filter, mask uint32)
	description(auto bool) string
	descriptionNum(auto bool) string
}

// ISOCAN is an ISO 15765-4 adapter
type ISOCAN struct {
	state
	v  variant
	tp *isotp.Transport
}

func newISOCAN(env *Env, v variant) *ISOCAN {
	return &ISOCAN{
		state: newState(env),
		v:     v,
		tp: isotp.New(v, env.Config, env.Driver,
			isotp.OptClock(env.Clock),
			isotp.OptHistory(env.History),
			isotp.OptFormatter(formatter.New(env.Config, env.Output)),
			isotp.OptLogger(env.Logger),
		),
	}
}

func NewISOCAN11(env *Env) *ISOCAN {
	env.defaults()
	return newISOCAN(env, &can11{cfg: env.Config})
}

func NewISOCAN29(env *Env) *ISOCAN {
	env.defaults()
	return newISOCAN(env, &can29{cfg: env.Config})
}

// Transport exposes the segmentation layer of the adapter
func (c *ISOCAN) Transport() *isotp.Transport {
	return c.tp
}

func (c *ISOCAN) ConnectECU() int {
	c.connected = true
	return c.v.Protocol()
}

// TryConnectECU sends the 01 00 supported PIDs request and waits for any answer,
// with bypass init set the adapter is connected without bus traffic.
func (c *ISOCAN) TryConnectECU(sendReply bool) int {
	c.status = obdcan.ReplyOK
	c.sampleSent = false
	c.Open()

	if c.env.Config.Bool(config.BypassInit) {
		c.connected = true
		return c.v.probeProtocol()
	}
	if err := c.tp.SendFrame([]byte{0x02, 0x01, 0x00}, obdcan.FrameLen); err == nil {
		if c.tp.Receive(sendReply) {
			c.connected = true
			c.sampleSent = sendReply
			return c.v.probeProtocol()
		}
	} else {
		c.env.Logger.Debugf("probe: %v", err)
	}
	c.Close()
	c.status = obdcan.ReplyNoData
	return 0
}

func (c *ISOCAN) Request(data []byte) obdcan.Reply {
	if err := c.tp.Send(data); err != nil {
		c.env.Logger.Debugf("request: %v", err)
		return obdcan.ReplyDataError
	}
	if c.tp.Receive(true) {
		return obdcan.ReplyNone
	}
	return obdcan.ReplyNoData
}

func (c *ISOCAN) Describe() {
	c.env.Output.SendReply(c.v.description(c.env.Config.Bool(config.UseAutoSP)))
}

func (c *ISOCAN) DescribeNum() {
	c.env.Output.SendReply(c.v.descriptionNum(c.env.Config.Bool(config.UseAutoSP)))
}

func (c *ISOCAN) Open() {
	c.SetFilterAndMask()
}

func (c *ISOCAN) SetFilterAndMask() {
	filter, mask := c.v.filterAndMask()
	c.env.Driver.SetFilterAndMask(filter, mask, c.v.Extended())
}

func (c *ISOCAN) Protocol() int {
	return c.v.Protocol()
}

// WiringCheck drives the TX pin low then high and reads it back through RX
func (c *ISOCAN) WiringCheck() {
	drv := c.env.Driver
	out := c.env.Output
	failed := false
	drv.SetBitBang(true)
	defer drv.SetBitBang(false)

	drv.SetBit(0)
	c.env.Clock.Sleep(100 * time.Microsecond)
	if drv.GetBit() != 0 {
		out.SendReply("CAN wiring failed [0->1]")
		failed = true
	}

	drv.SetBit(1)
	c.env.Clock.Sleep(100 * time.Microsecond)
	if drv.GetBit() != 1 {
		out.SendReply("CAN wiring failed [1->0]")
		failed = true
	}

	if !failed {
		out.SendReply("CAN wiring is OK")
	}
}
