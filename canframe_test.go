package obdcan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFrame(t *testing.T) {
	f := NewFrame(0x7DF, false, 12, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	assert.Equal(t, uint8(FrameLen), f.DLC)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, f.Payload())
	assert.Equal(t, Outgoing, f.FrameType)

	f = NewExtendedFrame(0x18DB33F1, 3, 0x02, 0x01)
	assert.True(t, f.Extended)
	assert.Equal(t, []byte{0x02, 0x01, DefaultByte}, f.Payload())
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "7E8", IDString(0x7E8, false))
	assert.Equal(t, "18DAF110", IDString(0x18DAF110, true))
	assert.Equal(t, "00000123", IDString(0x123, true))
}

func TestFrameString(t *testing.T) {
	f := NewFrame(0x7E8, false, 4, 0x03, 0x41, 0x0D, 0x41)
	f.FrameType = Incoming
	s := f.String()
	assert.True(t, strings.HasPrefix(s, "<i> || "), s)
	assert.Contains(t, s, "7E8 || 4 || 03 41 0D 41")
	assert.True(t, strings.HasSuffix(s, "·A·A"), s)
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name     string
		frame    *CANFrame
		filter   uint32
		mask     uint32
		extended bool
		want     bool
	}{
		{"match", NewFrame(0x7E9, false, 8), 0x7E8, 0x7F8, false, true},
		{"outside", NewFrame(0x7E0, false, 8), 0x7E8, 0x7F8, false, false},
		{"wrong width", NewExtendedFrame(0x7E8, 8), 0x7E8, 0x7F8, false, false},
		{"zero mask", NewFrame(0x123, false, 8), 0, 0, false, true},
		{"29 bit", NewExtendedFrame(0x18DAF11A, 8), 0x18DAF100, 0x1FFFFF00, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accept(tt.frame, tt.filter, tt.mask, tt.extended))
		})
	}
}
