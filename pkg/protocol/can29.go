package protocol

import (
	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
)

const defaultPriority = 0x18

type can29 struct {
	cfg *config.Store
}

// ID puts the priority bits on top of the configured header, 18DB33F1 without one
func (a *can29) ID() uint32 {
	prio := uint32(defaultPriority)
	if p := a.cfg.Bytes(config.CanPriorityBits); p.Len > 0 {
		prio = uint32(p.Data[0] & 0x1F)
	}
	if hdr := a.cfg.Bytes(config.HeaderBytes); hdr.Len > 0 {
		return hdr.AsCanID()&0x00FFFFFF | prio<<24
	}
	return 0x18DB33F1
}

func (a *can29) Extended() bool     { return true }
func (a *can29) ExactDLC() bool     { return false }
func (a *can29) Protocol() int      { return ProtocolISO15765_29 }
func (a *can29) probeProtocol() int { return ProtocolISO15765_29 }

func (a *can29) filterAndMask() (uint32, uint32) {
	mask := uint32(0x1FFFFF00)
	if m := a.cfg.Bytes(config.CanMask); m.Len > 0 {
		mask = m.AsCanID() & 0x1FFFFFFF
	}
	filter := uint32(0x18DAF100)
	if f := a.cfg.Bytes(config.CanFilter); f.Len > 0 {
		filter = f.AsCanID() & 0x1FFFFFFF
	}
	return filter, mask
}

// FlowControl always answers, the flow control settings only apply to 11 bit.
// The responder's source address moves into the target byte of 18DAxxF1.
func (a *can29) FlowControl(first *obdcan.CANFrame) (*obdcan.CANFrame, bool) {
	return obdcan.NewExtendedFrame(0x18DA00F1|(first.Identifier&0xFF)<<8, obdcan.FrameLen, 0x30, 0x00, 0x00), true
}

func (a *can29) description(auto bool) string {
	if auto {
		return "AUTO, ISO 15765-4 (CAN 29/500)"
	}
	return "ISO 15765-4 (CAN 29/500)"
}

func (a *can29) descriptionNum(auto bool) string {
	if auto {
		return "A7"
	}
	return "7"
}
