package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/adapter"
	"github.com/roffe/obdcan/pkg/command"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/history"
	"github.com/roffe/obdcan/pkg/obd"
	"github.com/roffe/obdcan/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipe struct {
	in  io.Reader
	out bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error) {
	if p.in == nil {
		return 0, io.EOF
	}
	return p.in.Read(b)
}

func (p *pipe) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

func (p *pipe) String() string {
	return p.out.String()
}

type recorder struct {
	cmds []string
	data []bool
}

func (r *recorder) Dispatch(cmd command.Command) {
	r.cmds = append(r.cmds, cmd.String())
	r.data = append(r.data, cmd.IsData())
}

func TestOnCharEcho(t *testing.T) {
	tests := []struct {
		name     string
		echo     bool
		linefeed bool
		want     string
	}{
		{"echo linefeed", true, true, "at i\r\n\r\n>"},
		{"echo no linefeed", true, false, "at i\r\r>"},
		{"no echo linefeed", false, true, "\r\n>"},
		{"silent", false, false, "\r>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.SetBool(config.Echo, tt.echo)
			cfg.SetBool(config.Linefeed, tt.linefeed)
			p := &pipe{}
			l := New(p, cfg)
			r := &recorder{}
			for _, ch := range []byte("at i\r\n") {
				l.OnChar(ch, r)
			}
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, []string{"ATI"}, r.cmds)
		})
	}
}

func TestOnCharSkipsUnprintable(t *testing.T) {
	cfg := config.New()
	cfg.SetBool(config.Echo, false)
	l := New(&pipe{}, cfg)
	r := &recorder{}
	for _, ch := range []byte("01\t0\x01\x7f0\r") {
		l.OnChar(ch, r)
	}
	require.Len(t, r.cmds, 1)
	assert.Equal(t, "0100", r.cmds[0])
	assert.True(t, r.data[0])
}

func TestRun(t *testing.T) {
	cfg := config.New()
	clock := obdcan.NewManualClock()
	bus := adapter.NewVirtual(&obdcan.DriverConfig{Clock: clock})
	bus.Attach(adapter.NewECU11(0x7E0, adapter.NewVehicle()))

	p := &pipe{in: strings.NewReader("ATE0\rATL0\r0100\rATDPN\r")}
	l := New(p, cfg)
	profile := obd.New(protocol.NewRegistry(&protocol.Env{
		Config:  cfg,
		Driver:  bus,
		History: history.New(16),
		Clock:   clock,
		Output:  l,
	}))
	d := command.New(cfg, profile, l)

	require.NoError(t, l.Run(context.Background(), d))
	assert.Equal(t,
		"ATE0\r\nOK\r\n\r\n>"+
			"OK\r\r>"+
			"41 00 BE 1F A8 13\r\r>"+
			"A6\r\r>",
		p.String())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("port gone") }

func TestRunErrors(t *testing.T) {
	l := New(&pipe{in: failingReader{}}, config.New())
	err := l.Run(context.Background(), &recorder{})
	assert.ErrorContains(t, err, "port gone")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l = New(&pipe{in: strings.NewReader("ATI\r")}, config.New())
	r := &recorder{}
	assert.ErrorIs(t, l.Run(ctx, r), context.Canceled)
	assert.Empty(t, r.cmds)
}
