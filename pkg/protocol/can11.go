package protocol

import (
	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
)

type can11 struct {
	cfg *config.Store
}

func (a *can11) ID() uint32 {
	if hdr := a.cfg.Bytes(config.HeaderBytes); hdr.Len > 0 {
		return hdr.AsCanID() & 0x7FF
	}
	return 0x7DF
}

func (a *can11) Extended() bool { return false }

func (a *can11) ExactDLC() bool {
	return a.cfg.Int(config.ProtocolID) == ProtocolUserB
}

func (a *can11) Protocol() int {
	if a.cfg.Int(config.ProtocolID) == ProtocolUserB {
		return ProtocolUserB
	}
	return ProtocolISO15765_11
}

func (a *can11) probeProtocol() int { return ProtocolISO15765_11 }

func (a *can11) filterAndMask() (uint32, uint32) {
	mask := uint32(0x7F8)
	if m := a.cfg.Bytes(config.CanMask); m.Len > 0 {
		mask = m.AsCanID() & 0x7FF
	}
	filter := uint32(0x7E8)
	if f := a.cfg.Bytes(config.CanFilter); f.Len > 0 {
		filter = f.AsCanID() & 0x7FF
	}
	return filter, mask
}

// FlowControl answers to 7E0 plus the low three bits of the responder, unless
// flow control is off. Mode 1 replaces the identifier, mode 1 and 2 the data.
func (a *can11) FlowControl(first *obdcan.CANFrame) (*obdcan.CANFrame, bool) {
	if !a.cfg.Bool(config.CanFlowControl) {
		return nil, false
	}
	mode := a.cfg.Int(config.CanFlowControlMode)
	fc := obdcan.NewFrame(0x7E0|first.Identifier&0x07, false, obdcan.FrameLen, 0x30, 0x00, 0x00)
	if hdr := a.cfg.Bytes(config.CanFlowCtrlHeader); mode == 1 && hdr.Len > 0 {
		fc.Identifier = hdr.AsCanID() & 0x7FF
	}
	if data := a.cfg.Bytes(config.CanFlowCtrlData); mode > 0 && data.Len > 0 {
		for i := range fc.Data {
			fc.Data[i] = obdcan.DefaultByte
		}
		copy(fc.Data[:], data.Bytes())
	}
	return fc, true
}

func (a *can11) description(auto bool) string {
	switch {
	case a.Protocol() == ProtocolUserB:
		return "USER1 (CAN 11/500)"
	case auto:
		return "AUTO, ISO 15765-4 (CAN 11/500)"
	}
	return "ISO 15765-4 (CAN 11/500)"
}

func (a *can11) descriptionNum(auto bool) string {
	switch {
	case a.Protocol() == ProtocolUserB:
		return "B"
	case auto:
		return "A6"
	}
	return "6"
}
