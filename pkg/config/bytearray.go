package config

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// ByteArrayCap is the storage capacity of a ByteArray
const ByteArrayCap = 8

// ByteArray is a bounded byte buffer, Len never exceeds ByteArrayCap
type ByteArray struct {
	Len  int
	Data [ByteArrayCap]byte
}

// NewByteArray copies b, it fails if b does not fit
func NewByteArray(b ...byte) (ByteArray, error) {
	var ba ByteArray
	if len(b) > ByteArrayCap {
		return ba, fmt.Errorf("byte array too long: %d > %d", len(b), ByteArrayCap)
	}
	ba.Len = copy(ba.Data[:], b)
	return ba, nil
}

// MustByteArray is NewByteArray for constant input
func MustByteArray(b ...byte) ByteArray {
	ba, err := NewByteArray(b...)
	if err != nil {
		panic(err)
	}
	return ba
}

// ParseByteArray decodes hex digits, spaces are ignored and an odd digit count is
// left padded, "7E0" becomes 07 E0.
func ParseByteArray(s string) (ByteArray, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ByteArray{}, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return NewByteArray(b...)
}

func (b *ByteArray) Bytes() []byte {
	return b.Data[:b.Len]
}

func (b *ByteArray) Clear() {
	*b = ByteArray{}
}

// AsCanID interprets the last (up to) four bytes as a big endian identifier
func (b ByteArray) AsCanID() uint32 {
	var buf [4]byte
	data := b.Data[:b.Len]
	if len(data) > 4 {
		data = data[len(data)-4:]
	}
	copy(buf[4-len(data):], data)
	return binary.BigEndian.Uint32(buf[:])
}

func (b ByteArray) String() string {
	return strings.ToUpper(hex.EncodeToString(b.Data[:b.Len]))
}
