package obdcan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseDriverReceive(t *testing.T) {
	base := NewBaseDriver("test", &DriverConfig{})
	base.SetFilterAndMask(0x7E8, 0x7F8, false)

	base.Deliver(NewFrame(0x7DF, false, 8))
	base.Deliver(NewFrame(0x7E8, false, 8, 0x01))
	base.Deliver(NewFrame(0x7E9, false, 8, 0x02))

	require.True(t, base.IsReady())
	// IsReady keeps the frame for Read
	require.True(t, base.IsReady())
	f := base.Read()
	require.NotNil(t, f)
	assert.Equal(t, uint32(0x7E8), f.Identifier)
	assert.Equal(t, Incoming, f.FrameType)
	assert.Equal(t, uint32(1), f.Seq)

	f = base.Read()
	require.NotNil(t, f)
	assert.Equal(t, uint32(2), f.Seq)
	assert.Nil(t, base.Read())
}

func TestBaseDriverEvents(t *testing.T) {
	base := NewBaseDriver("test", &DriverConfig{})
	base.Warn("careful")
	base.Error(errors.New("broken"))

	evt := <-base.Event()
	assert.Equal(t, "[WARN] test: careful", evt.String())
	evt = <-base.Event()
	assert.Equal(t, EventTypeError, evt.Type)
	assert.Equal(t, "test", evt.Driver)

	assert.Equal(t, "[INFO] up", Event{Type: EventTypeInfo, Details: "up"}.String())
	assert.Equal(t, "UNKNOWN", EventType(9).String())

	base.Fatal(errors.New("gone"))
	base.Fatal(errors.New("ignored"))
	assert.EqualError(t, <-base.Err(), "gone")

	base.Close()
	base.Close()
	<-base.Done()
}

func TestBaseDriverBitBang(t *testing.T) {
	base := NewBaseDriver("test", &DriverConfig{})
	assert.Equal(t, 1, base.GetBit())
	base.SetBit(0)
	assert.Equal(t, 1, base.GetBit(), "pin untouched without bit-bang")
	base.SetBitBang(true)
	base.SetBit(0)
	assert.Equal(t, 0, base.GetBit())
}

func TestReplyString(t *testing.T) {
	assert.Equal(t, "NO_DATA", ReplyNoData.String())
	assert.Equal(t, "WIRING_ERROR", ReplyWiringError.String())
	assert.Equal(t, "ECU_CODE", Reply(0x2A).String())
}

func TestUnrecoverable(t *testing.T) {
	plain := errors.New("busy")
	assert.True(t, IsRecoverable(plain))
	err := Unrecoverable(plain)
	assert.False(t, IsRecoverable(err))
	assert.ErrorIs(t, err, plain)
	assert.EqualError(t, Unrecoverable(nil), "unrecoverable error")
}
