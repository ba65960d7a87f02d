// Package command interprets the ELM327 style AT commands the adapter supports
// and hands everything that decodes as hex to the OBD profile.
package command

import (
	"strconv"
	"strings"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/obd"
)

const (
	DefaultVersion     = "ELM327 v1.4b"
	DefaultDescription = "OBDCAN ISO 15765-4 adapter"
)

// Command is a completed command line
type Command interface {
	obd.Request
	IsData() bool
}

type Dispatcher struct {
	cfg         *config.Store
	profile     *obd.Profile
	out         obdcan.Output
	version     string
	description string
	handlers    []handler
}

type handler struct {
	prefix string
	fn     func(arg string) obdcan.Reply
}

type Opt func(*Dispatcher)

func OptVersion(version string) Opt {
	return func(d *Dispatcher) {
		d.version = version
	}
}

func OptDescription(desc string) Opt {
	return func(d *Dispatcher) {
		d.description = desc
	}
}

func New(cfg *config.Store, profile *obd.Profile, out obdcan.Output, opts ...Opt) *Dispatcher {
	d := &Dispatcher{
		cfg:         cfg,
		profile:     profile,
		out:         out,
		version:     DefaultVersion,
		description: DefaultDescription,
	}
	for _, o := range opts {
		o(d)
	}
	// longer prefixes must come before their own prefixes
	d.handlers = []handler{
		{"@1", d.reply(func() string { return d.description })},
		{"BD", d.do(profile.DumpBuffer)},
		{"BI", d.bypassInit},
		{"CAF", d.boolProp(config.CanCAF)},
		{"CEA", d.bytesProp(config.CanExt, 0, 1)},
		{"CFC", d.boolProp(config.CanFlowControl)},
		{"CF", d.filterProp(config.CanFilter)},
		{"CM", d.filterProp(config.CanMask)},
		{"CP", d.bytesProp(config.CanPriorityBits, 1, 1)},
		{"CRA", d.receiveAddress},
		{"CTM", d.intProp(config.CanTimeoutMult, 1, 9)},
		{"DPN", d.do(profile.DescribeNum)},
		{"DP", d.do(profile.Describe)},
		{"D0", d.setBool(config.CanDLC, false)},
		{"D1", d.setBool(config.CanDLC, true)},
		{"D", d.defaults},
		{"E", d.boolProp(config.Echo)},
		{"FCSD", d.bytesProp(config.CanFlowCtrlData, 1, 5)},
		{"FCSH", d.bytesProp(config.CanFlowCtrlHeader, 2, 4)},
		{"FCSM", d.intProp(config.CanFlowControlMode, 0, 2)},
		{"H", d.boolProp(config.HeaderShow)},
		{"I", d.reply(func() string { return d.version })},
		{"AL", d.setBool(config.AllowLong, true)},
		{"NL", d.setBool(config.AllowLong, false)},
		{"L", d.boolProp(config.Linefeed)},
		{"PC", d.protocolClose},
		{"SH", d.bytesProp(config.HeaderBytes, 2, 4)},
		{"SP", d.setProtocol(false)},
		{"ST", d.intProp(config.Timeout, 0, 0xFF)},
		{"S", d.boolProp(config.Spaces)},
		{"TP", d.setProtocol(true)},
		{"WC", d.do(profile.WiringCheck)},
		{"Z", d.reset},
	}
	return d
}

// Dispatch runs one command line and writes its reply
func (d *Dispatcher) Dispatch(cmd Command) {
	s := cmd.String()
	if s == "" {
		return
	}
	if cmd.IsData() {
		d.profile.OnRequest(cmd)
		return
	}
	d.profile.Report(d.at(s))
}

func (d *Dispatcher) at(s string) obdcan.Reply {
	if !strings.HasPrefix(s, "AT") {
		return obdcan.ReplyCmdWrong
	}
	s = s[2:]
	for _, h := range d.handlers {
		if strings.HasPrefix(s, h.prefix) {
			r := h.fn(s[len(h.prefix):])
			if r == obdcan.ReplyOK {
				d.out.SendReply("OK")
			}
			return r
		}
	}
	return obdcan.ReplyCmdWrong
}

// silent is returned by handlers that wrote their own reply
const silent = obdcan.ReplyNone

func (d *Dispatcher) do(fn func()) func(string) obdcan.Reply {
	return func(arg string) obdcan.Reply {
		if arg != "" {
			return obdcan.ReplyCmdWrong
		}
		fn()
		return silent
	}
}

func (d *Dispatcher) reply(text func() string) func(string) obdcan.Reply {
	return d.do(func() { d.out.SendReply(text()) })
}

func (d *Dispatcher) setBool(p config.Property, v bool) func(string) obdcan.Reply {
	return func(arg string) obdcan.Reply {
		if arg != "" {
			return obdcan.ReplyCmdWrong
		}
		d.cfg.SetBool(p, v)
		return obdcan.ReplyOK
	}
}

func (d *Dispatcher) boolProp(p config.Property) func(string) obdcan.Reply {
	return func(arg string) obdcan.Reply {
		switch arg {
		case "0":
			d.cfg.SetBool(p, false)
		case "1":
			d.cfg.SetBool(p, true)
		default:
			return obdcan.ReplyCmdWrong
		}
		return obdcan.ReplyOK
	}
}

func (d *Dispatcher) intProp(p config.Property, lo, hi int) func(string) obdcan.Reply {
	return func(arg string) obdcan.Reply {
		v, err := strconv.ParseUint(arg, 16, 16)
		if err != nil || int(v) < lo || int(v) > hi {
			return obdcan.ReplyCmdWrong
		}
		d.cfg.SetInt(p, int(v))
		return obdcan.ReplyOK
	}
}

// bytesProp stores between lo and hi bytes, zero bytes clears the property
func (d *Dispatcher) bytesProp(p config.Property, lo, hi int) func(string) obdcan.Reply {
	return func(arg string) obdcan.Reply {
		ba, err := config.ParseByteArray(arg)
		if err != nil || ba.Len < lo || ba.Len > hi {
			return obdcan.ReplyCmdWrong
		}
		d.cfg.SetBytes(p, ba)
		return obdcan.ReplyOK
	}
}

func (d *Dispatcher) filterProp(p config.Property) func(string) obdcan.Reply {
	set := d.bytesProp(p, 2, 4)
	return func(arg string) obdcan.Reply {
		r := set(arg)
		if r == obdcan.ReplyOK {
			d.profile.SetFilterAndMask()
		}
		return r
	}
}

// receiveAddress sets filter and an exact mask for one identifier, no argument
// restores the defaults
func (d *Dispatcher) receiveAddress(arg string) obdcan.Reply {
	if arg == "" {
		d.cfg.SetBytes(config.CanFilter, config.ByteArray{})
		d.cfg.SetBytes(config.CanMask, config.ByteArray{})
		d.profile.SetFilterAndMask()
		return obdcan.ReplyOK
	}
	var mask config.ByteArray
	switch len(arg) {
	case 3:
		mask = config.MustByteArray(0x07, 0xFF)
	case 8:
		mask = config.MustByteArray(0x1F, 0xFF, 0xFF, 0xFF)
	default:
		return obdcan.ReplyCmdWrong
	}
	filter, err := config.ParseByteArray(arg)
	if err != nil {
		return obdcan.ReplyCmdWrong
	}
	d.cfg.SetBytes(config.CanFilter, filter)
	d.cfg.SetBytes(config.CanMask, mask)
	d.profile.SetFilterAndMask()
	return obdcan.ReplyOK
}

func (d *Dispatcher) bypassInit(arg string) obdcan.Reply {
	if arg != "" {
		return obdcan.ReplyCmdWrong
	}
	d.cfg.SetBool(config.BypassInit, true)
	return obdcan.ReplyOK
}

// setProtocol handles SP and TP, an A prefix keeps automatic search enabled
func (d *Dispatcher) setProtocol(try bool) func(string) obdcan.Reply {
	return func(arg string) obdcan.Reply {
		auto := try
		if strings.HasPrefix(arg, "A") && len(arg) > 1 {
			auto = true
			arg = arg[1:]
		}
		num, err := strconv.ParseUint(arg, 16, 8)
		if err != nil {
			return obdcan.ReplyCmdWrong
		}
		if num == 0 {
			auto = true
		}
		if r := d.profile.SetProtocol(int(num), true); r != obdcan.ReplyOK {
			return r
		}
		d.profile.CloseProtocol()
		d.cfg.SetInt(config.ProtocolID, int(num))
		d.cfg.SetBool(config.UseAutoSP, auto)
		return obdcan.ReplyOK
	}
}

func (d *Dispatcher) protocolClose(arg string) obdcan.Reply {
	if arg != "" {
		return obdcan.ReplyCmdWrong
	}
	d.profile.CloseProtocol()
	return obdcan.ReplyOK
}

func (d *Dispatcher) defaults(arg string) obdcan.Reply {
	if arg != "" {
		return obdcan.ReplyCmdWrong
	}
	d.cfg.Defaults()
	d.profile.SetProtocol(0, true)
	return obdcan.ReplyOK
}

func (d *Dispatcher) reset(arg string) obdcan.Reply {
	if arg != "" {
		return obdcan.ReplyCmdWrong
	}
	d.cfg.Defaults()
	d.profile.CloseProtocol()
	d.profile.SetProtocol(0, true)
	d.out.SendReply("")
	d.out.SendReply(d.version)
	return silent
}
