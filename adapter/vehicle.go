package adapter

import (
	"sync"
)

// Vehicle answers SAE J1979 requests from a handful of live values
type Vehicle struct {
	mu      sync.Mutex
	VIN     string
	RPM     float64
	Speed   int
	Coolant int
	// PendingReplies is the number of response pending replies sent before each answer
	PendingReplies int
}

func NewVehicle() *Vehicle {
	return &Vehicle{
		VIN:     "1G1JC5444R7252367",
		RPM:     812.5,
		Speed:   0,
		Coolant: 87,
	}
}

func (v *Vehicle) SetRPM(rpm float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.RPM = rpm
}

func (v *Vehicle) SetSpeed(kmh int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Speed = kmh
}

var supportedPIDs = map[byte][]byte{
	0x00: {0xBE, 0x1F, 0xA8, 0x13},
	0x20: {0x00, 0x00, 0x00, 0x00},
}

func (v *Vehicle) pid(pid byte) ([]byte, bool) {
	if b, ok := supportedPIDs[pid]; ok {
		return b, true
	}
	switch pid {
	case 0x01:
		return []byte{0x00, 0x07, 0xE5, 0x00}, true
	case 0x05:
		return []byte{byte(v.Coolant + 40)}, true
	case 0x0C:
		raw := uint16(v.RPM * 4)
		return []byte{byte(raw >> 8), byte(raw)}, true
	case 0x0D:
		return []byte{byte(v.Speed)}, true
	}
	return nil, false
}

func (v *Vehicle) Handle(req []byte) [][]byte {
	if len(req) == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	mode := req[0]
	var out [][]byte
	for i := 0; i < v.PendingReplies; i++ {
		out = append(out, []byte{0x7F, mode, 0x78})
	}
	var resp []byte
	switch mode {
	case 0x01:
		resp = []byte{0x41}
		for _, pid := range req[1:] {
			if data, ok := v.pid(pid); ok {
				resp = append(append(resp, pid), data...)
			}
		}
		if len(resp) == 1 {
			// unsupported pids are not answered
			return nil
		}
	case 0x03:
		resp = []byte{0x43, 0x00}
	case 0x09:
		if len(req) < 2 {
			resp = []byte{0x7F, mode, 0x12}
			break
		}
		switch req[1] {
		case 0x00:
			resp = []byte{0x49, 0x00, 0x54, 0x40, 0x00, 0x00}
		case 0x02:
			resp = append([]byte{0x49, 0x02, 0x01}, v.VIN...)
		default:
			return nil
		}
	case 0x3E:
		resp = []byte{0x7E, 0x00}
	default:
		resp = []byte{0x7F, mode, 0x11}
	}
	return append(out, resp)
}
