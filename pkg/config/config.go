package config

import (
	"fmt"
	"sync"
)

// Property identifies a configuration value. The id ranges of the three kinds are
// disjoint, asking for a property with the wrong kind is a programming error and panics.
type Property int

const (
	boolStart  Property = 0
	boolEnd    Property = 64
	intStart   Property = 64
	intEnd     Property = 96
	bytesStart Property = 96
	bytesEnd   Property = 128
)

// Boolean properties
const (
	Echo Property = boolStart + iota
	Linefeed
	HeaderShow
	Spaces
	CanDLC
	CanCAF
	CanFlowControl
	BypassInit
	UseAutoSP
	AllowLong
	lastBool
)

// Integer properties
const (
	Timeout Property = intStart + iota // P2 in units of 4 ms, 0 selects the default
	CanTimeoutMult
	ProtocolID
	CanFlowControlMode
	lastInt
)

// Byte array properties
const (
	HeaderBytes Property = bytesStart + iota
	CanFilter
	CanMask
	CanExt
	CanFlowCtrlHeader
	CanFlowCtrlData
	CanPriorityBits
	lastBytes
)

var names = map[Property]string{
	Echo:               "echo",
	Linefeed:           "linefeed",
	HeaderShow:         "headers",
	Spaces:             "spaces",
	CanDLC:             "dlc",
	CanCAF:             "caf",
	CanFlowControl:     "flow_control",
	BypassInit:         "bypass_init",
	UseAutoSP:          "auto_protocol",
	AllowLong:          "allow_long",
	Timeout:            "timeout",
	CanTimeoutMult:     "timeout_multiplier",
	ProtocolID:         "protocol",
	CanFlowControlMode: "flow_control_mode",
	HeaderBytes:        "header",
	CanFilter:          "can_filter",
	CanMask:            "can_mask",
	CanExt:             "can_extended_address",
	CanFlowCtrlHeader:  "flow_control_header",
	CanFlowCtrlData:    "flow_control_data",
	CanPriorityBits:    "priority",
}

func (p Property) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return fmt.Sprintf("property(%d)", int(p))
}

func (p Property) IsBool() bool  { return p >= boolStart && p < boolEnd }
func (p Property) IsInt() bool   { return p >= intStart && p < intEnd }
func (p Property) IsBytes() bool { return p >= bytesStart && p < bytesEnd }

// Store holds the adapter properties. It is shared by every core component for
// the lifetime of the process.
type Store struct {
	mu     sync.RWMutex
	bools  uint64
	ints   [intEnd - intStart]int
	arrays [bytesEnd - bytesStart]ByteArray
}

// New returns a store loaded with the power-on defaults
func New() *Store {
	s := &Store{}
	s.Defaults()
	return s
}

func mustBool(p Property) {
	if !p.IsBool() {
		panic(fmt.Sprintf("config: %s is not a boolean property", p))
	}
}

func mustInt(p Property) {
	if !p.IsInt() {
		panic(fmt.Sprintf("config: %s is not an integer property", p))
	}
}

func mustBytes(p Property) {
	if !p.IsBytes() {
		panic(fmt.Sprintf("config: %s is not a byte array property", p))
	}
}

func (s *Store) Bool(p Property) bool {
	mustBool(p)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bools&(1<<uint(p-boolStart)) != 0
}

func (s *Store) SetBool(p Property, v bool) {
	mustBool(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.bools |= 1 << uint(p-boolStart)
	} else {
		s.bools &^= 1 << uint(p-boolStart)
	}
}

func (s *Store) Int(p Property) int {
	mustInt(p)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ints[p-intStart]
}

func (s *Store) SetInt(p Property, v int) {
	mustInt(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ints[p-intStart] = v
}

// Bytes returns a copy of the byte array property
func (s *Store) Bytes(p Property) ByteArray {
	mustBytes(p)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arrays[p-bytesStart]
}

func (s *Store) SetBytes(p Property, v ByteArray) {
	mustBytes(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrays[p-bytesStart] = v
}

// Clear zeroes every property
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bools = 0
	for i := range s.ints {
		s.ints[i] = 0
	}
	for i := range s.arrays {
		s.arrays[i].Clear()
	}
}

// Defaults resets the store to the power-on state
func (s *Store) Defaults() {
	s.Clear()
	s.SetBool(Echo, true)
	s.SetBool(Linefeed, true)
	s.SetBool(Spaces, true)
	s.SetBool(CanCAF, true)
	s.SetBool(CanFlowControl, true)
	s.SetBool(UseAutoSP, true)
	s.SetInt(CanTimeoutMult, 1)
}

// Snapshot returns a deep copy taken under the read lock
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Store{bools: s.bools, ints: s.ints, arrays: s.arrays}
}
