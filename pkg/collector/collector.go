// Package collector assembles a command line one character at a time, keeping
// both the text form and, while it is all hex, the decoded bytes.
package collector

import (
	"strings"
)

const (
	// MaxString is how much of the text form is kept
	MaxString = 14
	// MaxData is the largest request in bytes
	MaxData = 255
)

type Collector struct {
	str      strings.Builder
	data     [MaxData]byte
	length   int
	previous byte
	binary   bool
}

func New() *Collector {
	return &Collector{binary: true}
}

// PutChar adds one character, spaces and NULs are dropped
func (c *Collector) PutChar(ch byte) {
	if ch == ' ' || ch == 0 {
		return
	}
	if ch >= 'a' && ch <= 'z' {
		ch -= 'a' - 'A'
	}
	c.binary = c.binary && isHex(ch)

	if c.str.Len() < MaxString {
		c.str.WriteByte(ch)
	}
	if c.length < MaxData {
		if c.binary && c.previous != 0 {
			c.data[c.length] = hexVal(c.previous)<<4 | hexVal(ch)
			c.length++
			c.previous = 0
		} else {
			c.previous = ch
		}
	}
}

// PutString feeds every byte of s
func (c *Collector) PutString(s string) {
	for i := 0; i < len(s); i++ {
		c.PutChar(s[i])
	}
}

func (c *Collector) Reset() {
	c.str.Reset()
	c.length = 0
	c.previous = 0
	c.binary = true
}

// String is the uppercased command without spaces, at most MaxString characters
func (c *Collector) String() string {
	return c.str.String()
}

// Data returns the decoded hex pairs
func (c *Collector) Data() []byte {
	return c.data[:c.length]
}

func (c *Collector) Len() int {
	return c.length
}

// IsData reports if every character so far was a hex digit
func (c *Collector) IsData() bool {
	return c.binary
}

func isHex(ch byte) bool {
	return ch >= '0' && ch <= '9' || ch >= 'A' && ch <= 'F'
}

func hexVal(ch byte) byte {
	if ch <= '9' {
		return ch - '0'
	}
	return ch - 'A' + 10
}
