package obd

import (
	"encoding/hex"
	"fmt"
	"strings"
)

var pidNames = map[byte]string{
	0x01: "monitor status since DTCs cleared",
	0x03: "fuel system status",
	0x04: "calculated engine load",
	0x05: "engine coolant temperature",
	0x06: "short term fuel trim bank 1",
	0x07: "long term fuel trim bank 1",
	0x0B: "intake manifold absolute pressure",
	0x0C: "engine speed",
	0x0D: "vehicle speed",
	0x0E: "timing advance",
	0x0F: "intake air temperature",
	0x10: "MAF air flow rate",
	0x11: "throttle position",
	0x13: "oxygen sensors present",
	0x1C: "OBD standard",
	0x1F: "run time since engine start",
	0x21: "distance with MIL on",
	0x2F: "fuel tank level",
	0x31: "distance since codes cleared",
	0x33: "barometric pressure",
	0x42: "control module voltage",
	0x46: "ambient air temperature",
	0x51: "fuel type",
	0x5C: "engine oil temperature",
}

// PIDName describes a mode 01 PID
func PIDName(pid byte) string {
	if n, ok := pidNames[pid]; ok {
		return n
	}
	return fmt.Sprintf("PID %02X", pid)
}

// SupportedPIDs decodes the 4 byte bitmap answering 01 <base>, bit 7 of the first
// byte is base+1.
func SupportedPIDs(base byte, bitmap []byte) []byte {
	var pids []byte
	for i, b := range bitmap {
		if i == 4 {
			break
		}
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>bit) != 0 {
				pids = append(pids, base+byte(i*8+bit)+1)
			}
		}
	}
	return pids
}

// ParseReply decodes a formatted single line reply, "41 0D 32" or "410D32"
func ParseReply(line string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(line), " ", ""))
}

// PositiveResponse returns the data following the echoed mode and PID of a
// reply, nil if line is not a positive answer to mode/pid
func PositiveResponse(mode, pid byte, line string) []byte {
	b, err := ParseReply(line)
	if err != nil || len(b) < 2 || b[0] != mode|0x40 || b[1] != pid {
		return nil
	}
	return b[2:]
}
