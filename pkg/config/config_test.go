package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaults(t *testing.T) {
	s := New()
	assert.True(t, s.Bool(Echo))
	assert.True(t, s.Bool(Linefeed))
	assert.True(t, s.Bool(Spaces))
	assert.True(t, s.Bool(CanCAF))
	assert.True(t, s.Bool(CanFlowControl))
	assert.True(t, s.Bool(UseAutoSP))
	assert.False(t, s.Bool(HeaderShow))
	assert.False(t, s.Bool(BypassInit))
	assert.Equal(t, 0, s.Int(Timeout))
	assert.Equal(t, 1, s.Int(CanTimeoutMult))
	assert.Equal(t, 0, s.Bytes(HeaderBytes).Len)
}

func TestStoreSetGet(t *testing.T) {
	s := New()
	s.SetBool(HeaderShow, true)
	s.SetBool(Echo, false)
	s.SetInt(Timeout, 0x32)
	s.SetBytes(HeaderBytes, MustByteArray(0x07, 0xE0))

	assert.True(t, s.Bool(HeaderShow))
	assert.False(t, s.Bool(Echo))
	assert.True(t, s.Bool(Linefeed), "neighbouring bits must be untouched")
	assert.Equal(t, 0x32, s.Int(Timeout))
	assert.Equal(t, uint32(0x7E0), s.Bytes(HeaderBytes).AsCanID())

	snap := s.Snapshot()
	s.SetInt(Timeout, 1)
	assert.Equal(t, 0x32, snap.Int(Timeout))

	s.Clear()
	assert.False(t, s.Bool(Linefeed))
	assert.Equal(t, 0, s.Bytes(HeaderBytes).Len)
}

func TestStoreWrongKindPanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.Bool(Timeout) })
	assert.Panics(t, func() { s.Int(HeaderBytes) })
	assert.Panics(t, func() { s.Bytes(Echo) })
	assert.Panics(t, func() { s.SetInt(Property(200), 1) })
}

func TestParseByteArray(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		id      uint32
		wantErr bool
	}{
		{in: "7E0", want: []byte{0x07, 0xE0}, id: 0x7E0},
		{in: "18 DA F1 10", want: []byte{0x18, 0xDA, 0xF1, 0x10}, id: 0x18DAF110},
		{in: "DA F1 10", want: []byte{0xDA, 0xF1, 0x10}, id: 0xDAF110},
		{in: "0102030405060708", want: []byte{1, 2, 3, 4, 5, 6, 7, 8}, id: 0x05060708},
		{in: "", want: []byte{}, id: 0},
		{in: "ZZ", wantErr: true},
		{in: "010203040506070809", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteArray(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Bytes())
			assert.Equal(t, tt.id, got.AsCanID())
		})
	}
}

func TestProfileApply(t *testing.T) {
	const doc = `
headers: true
spaces: false
timeout: 50
protocol: 6
header: 7E0
flow_control_data: 30 00 0A
`
	p, err := ReadProfile(strings.NewReader(doc))
	require.NoError(t, err)

	s := New()
	require.NoError(t, p.Apply(s))
	assert.True(t, s.Bool(HeaderShow))
	assert.False(t, s.Bool(Spaces))
	assert.True(t, s.Bool(Echo))
	assert.Equal(t, 50, s.Int(Timeout))
	assert.Equal(t, 6, s.Int(ProtocolID))
	assert.Equal(t, uint32(0x7E0), s.Bytes(HeaderBytes).AsCanID())
	fc := s.Bytes(CanFlowCtrlData)
	assert.Equal(t, []byte{0x30, 0x00, 0x0A}, fc.Bytes())
}

func TestProfileRejectsUnknownAndBadHex(t *testing.T) {
	_, err := ReadProfile(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)

	p, err := ReadProfile(strings.NewReader("headers: true\ncan_mask: XYZ\n"))
	require.NoError(t, err)
	s := New()
	assert.Error(t, p.Apply(s))
	assert.False(t, s.Bool(HeaderShow), "store must be untouched on error")
}

func TestProfileRoundTrip(t *testing.T) {
	s := New()
	s.SetBool(HeaderShow, true)
	s.SetBytes(CanPriorityBits, MustByteArray(0x10))

	var sb strings.Builder
	require.NoError(t, ProfileFrom(s).Write(&sb))

	p, err := ReadProfile(strings.NewReader(sb.String()))
	require.NoError(t, err)
	s2 := New()
	s2.Clear()
	require.NoError(t, p.Apply(s2))
	assert.True(t, s2.Bool(HeaderShow))
	assert.True(t, s2.Bool(Echo))
	assert.Equal(t, 1, s2.Int(CanTimeoutMult))
	pb := s2.Bytes(CanPriorityBits)
	assert.Equal(t, []byte{0x10}, pb.Bytes())
}
