// Package isotp implements the ISO 15765-2 segmentation used by the CAN
// protocol adapters: single, first and consecutive frames, the flow control
// handshake and the P2/P2* response timing.
package isotp

import (
	"errors"
	"time"
)

// PCI frame types, the high nibble of the first protocol byte
const (
	PCISingleFrame      = 0x0
	PCIFirstFrame       = 0x1
	PCIConsecutiveFrame = 0x2
	PCIFlowControl      = 0x3
)

const (
	// MaxMessageLen is the largest payload a first frame can announce
	MaxMessageLen = 0x0FFF

	// DefaultP2 is used when no timeout is configured
	DefaultP2 = 200 * time.Millisecond
	// P2Star is the wait after a response pending reply
	P2Star = 5000 * time.Millisecond
	// MaxPendingResponses bounds how often P2Star is granted within one receive
	MaxPendingResponses = 100

	pollInterval = time.Millisecond
	seqStart     = 0x21
)

var (
	ErrPayloadTooLong = errors.New("payload exceeds 4095 bytes")
	ErrNoFlowControl  = errors.New("no flow control frame received")
	ErrFlowStatus     = errors.New("receiver not ready")
)

// FlowControl carries the parameters of a received flow control frame
type FlowControl struct {
	Status    byte
	BlockSize byte
	STmin     byte
}

// SeparationTime is STmin taken as milliseconds
func (fc FlowControl) SeparationTime() time.Duration {
	return time.Duration(fc.STmin) * time.Millisecond
}

// PCIType returns the frame type nibble, offset is 1 with extended addressing
func PCIType(data []byte, offset int) byte {
	if offset >= len(data) {
		return 0xFF
	}
	return data[offset] >> 4
}

// IsResponsePending matches the 7F xx 78 negative response
func IsResponsePending(data []byte, offset int) bool {
	if len(data) < 4+offset {
		return false
	}
	return data[1+offset] == 0x7F && data[3+offset] == 0x78
}

// SingleFrameCapacity is the payload that fits a single frame
func SingleFrameCapacity(extAddr, caf bool) int {
	n := 8
	if extAddr {
		n--
	}
	if caf {
		n--
	}
	return n
}

// ConsecutiveFrameCount is the number of consecutive frames needed after the first frame
func ConsecutiveFrameCount(length int, extAddr bool) int {
	first, next := 6, 7
	if extAddr {
		first, next = 5, 6
	}
	if length <= first {
		return 0
	}
	return (length - first + next - 1) / next
}

// NextSequence advances the consecutive frame counter, 0x21..0x2F then 0x20
func NextSequence(sn byte) byte {
	sn++
	if sn > 0x2F {
		sn = 0x20
	}
	return sn
}
