package obdcan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// FrameLen is the payload capacity of a classic CAN frame
const FrameLen = 8

// DefaultByte fills unused payload bytes
const DefaultByte = 0x00

type CANFrameType struct {
	Type int
}

var (
	Incoming = CANFrameType{Type: 0}
	Outgoing = CANFrameType{Type: 1}
)

type CANFrame struct {
	Identifier uint32
	Extended   bool
	DLC        uint8
	Data       [FrameLen]byte
	Seq        uint32 // reception order, assigned by the driver
	FrameType  CANFrameType
}

// NewFrame creates a new CANFrame and copies at most 8 bytes of data, the rest is zero filled
func NewFrame(identifier uint32, extended bool, dlc uint8, data ...byte) *CANFrame {
	if dlc > FrameLen {
		dlc = FrameLen
	}
	f := &CANFrame{
		Identifier: identifier,
		Extended:   extended,
		DLC:        dlc,
		FrameType:  Outgoing,
	}
	copy(f.Data[:], data)
	return f
}

// NewExtendedFrame creates a new 29 bit frame
func NewExtendedFrame(identifier uint32, dlc uint8, data ...byte) *CANFrame {
	return NewFrame(identifier, true, dlc, data...)
}

// Payload returns the bytes covered by the DLC
func (f *CANFrame) Payload() []byte {
	return f.Data[:min(int(f.DLC), FrameLen)]
}

// IDString renders the identifier the way OBD tools print it, 3 hex digits for
// 11 bit identifiers and 8 for 29 bit ones.
func IDString(id uint32, extended bool) string {
	if extended {
		return fmt.Sprintf("%08X", id&0x1FFFFFFF)
	}
	return fmt.Sprintf("%03X", id&0xFFF)
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *CANFrame) direction() string {
	switch f.FrameType.Type {
	case 0:
		return "<i> || "
	case 1:
		return "<o> || "
	}
	return "<?> || "
}

func (f *CANFrame) hexView() string {
	var hexView strings.Builder
	data := f.Payload()
	for i, b := range data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			hexView.WriteString(" ")
		}
	}
	return fmt.Sprintf("%-23s", hexView.String())
}

func (f *CANFrame) String() string {
	var out strings.Builder
	out.WriteString(f.direction())
	out.WriteString(fmt.Sprintf("%8s", IDString(f.Identifier, f.Extended)) + " || ")
	out.WriteString(strconv.Itoa(int(f.DLC)) + " || ")
	out.WriteString(f.hexView())
	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Payload()))
	return out.String()
}

func (f *CANFrame) ColorString() string {
	var out strings.Builder
	out.WriteString(f.direction())
	out.WriteString(green("%8s", IDString(f.Identifier, f.Extended)) + " || ")
	out.WriteString(strconv.Itoa(int(f.DLC)) + " || ")
	out.WriteString(red("%s", f.hexView()))
	out.WriteString(" || ")
	out.WriteString(yellow("%s", onlyPrintable(f.Payload())))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 126 {
			out.WriteString("·")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
