package formatter

import (
	"testing"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	cfg := config.New()
	assert.Equal(t, KeyStandard, KeyFor(cfg))
	cfg.SetBool(config.HeaderShow, true)
	assert.Equal(t, KeyHeaders, KeyFor(cfg))
	cfg.SetBool(config.CanCAF, false)
	assert.Equal(t, KeyCAFOff, KeyFor(cfg))
	cfg.SetBool(config.HeaderShow, false)
	assert.Equal(t, KeyCAFOff, KeyFor(cfg))
}

func TestFormat(t *testing.T) {
	single := obdcan.NewFrame(0x7E8, false, 8, 0x03, 0x41, 0x00, 0xBE, 0x1F, 0xA8, 0x13, 0x00)
	first := obdcan.NewFrame(0x7E8, false, 8, 0x10, 0x14, 0x49, 0x02, 0x01, 0x31, 0x44, 0x34)
	next := obdcan.NewFrame(0x7E8, false, 8, 0x21, 0x47, 0x50, 0x30, 0x30, 0x52, 0x35, 0x35)
	ext := obdcan.NewExtendedFrame(0x18DAF110, 8, 0x03, 0x41, 0x0D, 0x32, 0x00, 0x00, 0x00, 0x00)
	extAddrSingle := obdcan.NewFrame(0x7E8, false, 8, 0xF1, 0x03, 0x41, 0x0D, 0x32, 0x00, 0x00, 0x00)
	extAddrFirst := obdcan.NewFrame(0x7E8, false, 8, 0xF1, 0x10, 0x14, 0x49, 0x02, 0x01, 0x31, 0x44)

	tests := []struct {
		name string
		kind Kind
		msg  *obdcan.CANFrame
		num  int
		opts Options
		want []string
	}{
		{
			name: "standard single",
			msg:  single,
			opts: Options{Spaces: true},
			want: []string{"41 00 BE"},
		},
		{
			name: "standard single no spaces",
			msg:  single,
			want: []string{"4100BE"},
		},
		{
			name: "standard single extended address",
			msg:  extAddrSingle,
			opts: Options{Spaces: true, ExtAddr: true},
			want: []string{"41 0D 32"},
		},
		{
			name: "headers single",
			msg:  single,
			opts: Options{Key: KeyHeaders, Spaces: true, Headers: true},
			want: []string{"7E8 03 41 00 BE"},
		},
		{
			name: "headers single with dlc",
			msg:  single,
			opts: Options{Key: KeyHeaders, Spaces: true, DLC: true, Headers: true},
			want: []string{"7E8 8 03 41 00 BE"},
		},
		{
			name: "headers 29 bit no spaces",
			msg:  ext,
			opts: Options{Key: KeyHeaders, Headers: true},
			want: []string{"18DAF11003410D32"},
		},
		{
			name: "caf off without headers",
			msg:  single,
			opts: Options{Key: KeyCAFOff, Spaces: true},
			want: []string{"03 41 00 BE 1F A8 13 00"},
		},
		{
			name: "caf off with headers",
			msg:  single,
			opts: Options{Key: KeyCAFOff, Spaces: true, Headers: true},
			want: []string{"7E8 03 41 00 BE 1F A8 13 00"},
		},
		{
			name: "standard first frame",
			kind: FirstFrame,
			msg:  first,
			opts: Options{Spaces: true},
			want: []string{"014", "0: 49 02 01 31 44 34"},
		},
		{
			name: "standard first frame extended address",
			kind: FirstFrame,
			msg:  extAddrFirst,
			opts: Options{Spaces: true, ExtAddr: true},
			want: []string{"014", "0: 49 02 01 31 44"},
		},
		{
			name: "headers first frame",
			kind: FirstFrame,
			msg:  first,
			opts: Options{Key: KeyHeaders, Spaces: true, Headers: true},
			want: []string{"7E8 10 14 49 02 01 31 44 34"},
		},
		{
			name: "standard consecutive frame",
			kind: ConsecutiveFrame,
			msg:  next,
			num:  1,
			opts: Options{Spaces: true},
			want: []string{"1: 47 50 30 30 52 35 35"},
		},
		{
			name: "consecutive frame counter wraps",
			kind: ConsecutiveFrame,
			msg:  next,
			num:  0x1A,
			want: []string{"A: 47503030523535"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.kind, tt.msg, tt.num, tt.opts)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Format(tt.kind, tt.msg, tt.num, tt.opts))
		})
	}
}

func TestFormatClampsLength(t *testing.T) {
	bad := obdcan.NewFrame(0x7E8, false, 8, 0x0F, 1, 2, 3, 4, 5, 6, 7)
	assert.Equal(t, []string{"01020304050607"}, Format(SingleFrame, bad, 0, Options{}))
}

func TestFormatterWritesOutput(t *testing.T) {
	cfg := config.New()
	out := &obdcan.Transcript{}
	f := New(cfg, out)

	f.FirstFrame(obdcan.NewFrame(0x7E8, false, 8, 0x10, 0x14, 0x49, 0x02, 0x01, 0x31, 0x44, 0x34))
	f.NextFrame(obdcan.NewFrame(0x7E8, false, 8, 0x21, 0x47, 0x50, 0x30, 0x30, 0x52, 0x35, 0x35), 1)
	cfg.SetBool(config.HeaderShow, true)
	f.Reply(obdcan.NewFrame(0x7E9, false, 8, 0x02, 0x41, 0x00))

	lines := out.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "014", lines[0])
	assert.Equal(t, "0: 49 02 01 31 44 34", lines[1])
	assert.Equal(t, "1: 47 50 30 30 52 35 35", lines[2])
	assert.Equal(t, "7E9 02 41 00", lines[3])
}
