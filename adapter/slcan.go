package adapter

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/albenik/bcd"
	"github.com/pkg/errors"
	"github.com/roffe/obdcan"
	"go.bug.st/serial"
)

func init() {
	if err := obdcan.RegisterDriver(&obdcan.DriverInfo{
		Name:               "SLCAN",
		Description:        "Lawicel / CANable serial line CAN adapter",
		RequiresSerialPort: true,
		New:                NewSLCAN,
	}); err != nil {
		panic(err)
	}
}

var slcanRates = map[float64]string{
	10:   "S0",
	20:   "S1",
	50:   "S2",
	100:  "S3",
	125:  "S4",
	250:  "S5",
	500:  "S6",
	800:  "S7",
	1000: "S8",
}

// SLCAN speaks the Lawicel ASCII protocol over a serial port
type SLCAN struct {
	*obdcan.BaseDriver
	cfg *obdcan.DriverConfig

	wmu     sync.Mutex
	port    serial.Port
	closed  bool
	version uint16
}

func NewSLCAN(cfg *obdcan.DriverConfig) (obdcan.Driver, error) {
	if cfg.CANRate == 0 {
		cfg.CANRate = 500
	}
	if _, ok := slcanRates[cfg.CANRate]; !ok {
		return nil, fmt.Errorf("unsupported CAN rate %g kbit/s", cfg.CANRate)
	}
	if cfg.PortBaudrate == 0 {
		cfg.PortBaudrate = 115200
	}
	return &SLCAN{
		BaseDriver: obdcan.NewBaseDriver("SLCAN", cfg),
		cfg:        cfg,
	}, nil
}

func (sl *SLCAN) Open(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: sl.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(sl.cfg.Port, mode)
	if err != nil {
		err = errors.Wrapf(err, "failed to open com port %q", sl.cfg.Port)
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return obdcan.Unrecoverable(err)
		}
		return err
	}
	if err := p.SetReadTimeout(3 * time.Millisecond); err != nil {
		p.Close()
		return errors.Wrap(err, "failed to set read timeout")
	}
	p.ResetOutputBuffer()
	p.ResetInputBuffer()
	sl.port = p

	go sl.recvManager(ctx)

	// close the channel first, an adapter left open refuses the bitrate command
	for _, cmd := range []string{"C", slcanRates[sl.cfg.CANRate], "V", "O"} {
		if err := sl.command(cmd); err != nil {
			p.Close()
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (sl *SLCAN) command(cmd string) error {
	sl.wmu.Lock()
	defer sl.wmu.Unlock()
	if sl.cfg.Debug {
		log.Println(">> " + cmd)
	}
	if _, err := sl.port.Write([]byte(cmd + "\r")); err != nil {
		return errors.Wrapf(err, "failed to write %q to com port", cmd)
	}
	return nil
}

// Status requests the SJA1000 status flags, the answer arrives as an event
func (sl *SLCAN) Status() error {
	return sl.command("F")
}

// Version returns the hardware and software version reported when the port was opened
func (sl *SLCAN) Version() uint16 {
	sl.wmu.Lock()
	defer sl.wmu.Unlock()
	return sl.version
}

func (sl *SLCAN) Send(f *obdcan.CANFrame) error {
	if sl.port == nil {
		return obdcan.ErrNotConfigured
	}
	buf := encodeFrame(f)
	sl.wmu.Lock()
	defer sl.wmu.Unlock()
	if sl.closed {
		return obdcan.ErrDriverClosed
	}
	if sl.cfg.Debug {
		log.Printf(">> %s", buf[:len(buf)-1])
	}
	if _, err := sl.port.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write to com port")
	}
	return nil
}

// SetBitBang reports that the Lawicel protocol has no access to the CAN pins
func (sl *SLCAN) SetBitBang(enabled bool) {
	if enabled {
		sl.Warn("pin access not supported, wiring check unavailable")
	}
}

func (sl *SLCAN) SetBit(int) {}

// GetBit reads neither level so a wiring check reports both transitions as failed
func (sl *SLCAN) GetBit() int {
	return -1
}

func (sl *SLCAN) Close() error {
	sl.BaseDriver.Close()
	if sl.port == nil {
		return nil
	}
	sl.command("C")
	sl.wmu.Lock()
	sl.closed = true
	sl.wmu.Unlock()
	time.Sleep(10 * time.Millisecond)
	return sl.port.Close()
}

func (sl *SLCAN) isClosed() bool {
	sl.wmu.Lock()
	defer sl.wmu.Unlock()
	return sl.closed
}

func (sl *SLCAN) recvManager(ctx context.Context) {
	buf := make([]byte, 0, 64)
	readBuf := make([]byte, 32)
	for ctx.Err() == nil {
		select {
		case <-sl.Done():
			return
		default:
		}
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if !sl.isClosed() {
				sl.Fatal(errors.Wrap(err, "failed to read com port"))
			}
			return
		}
		if n == 0 {
			continue
		}
		buf = sl.parse(buf, readBuf[:n])
	}
}

// parse consumes complete lines and returns the unterminated rest
func (sl *SLCAN) parse(buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		switch b {
		case '\r':
			if len(buf) > 0 {
				sl.handleLine(buf)
			}
			buf = buf[:0]
		case 0x07:
			sl.Warn("adapter rejected command")
			buf = buf[:0]
		default:
			buf = append(buf, b)
		}
	}
	return buf
}

func (sl *SLCAN) handleLine(line []byte) {
	if sl.cfg.Debug {
		log.Printf("<< %s", line)
	}
	switch line[0] {
	case 't', 'T':
		f, err := decodeFrame(line)
		if err != nil {
			sl.cfg.OnMessage(fmt.Sprintf("%v: %q", err, line))
			return
		}
		sl.Deliver(f)
	case 'z', 'Z':
		// transmit acknowledged
	case 'F':
		if err := checkStatus(line); err != nil {
			sl.Error(err)
		}
	case 'V':
		v, err := parseVersion(line)
		if err != nil {
			sl.Warn(err.Error())
			return
		}
		sl.wmu.Lock()
		sl.version = v
		sl.wmu.Unlock()
		sl.Info(fmt.Sprintf("SLCAN version %d.%d", v/100, v%100))
	default:
		sl.Warn("unknown>> " + string(line))
	}
}

const hexDigits = "0123456789ABCDEF"

// encodeFrame renders t<iii><l><dd..>\r for 11 bit and T<iiiiiiii><l><dd..>\r for 29 bit frames
func encodeFrame(f *obdcan.CANFrame) []byte {
	buf := make([]byte, 0, 1+8+1+16+1)
	if f.Extended {
		buf = append(buf, 'T')
		id := f.Identifier & 0x1FFFFFFF
		for shift := 28; shift >= 0; shift -= 4 {
			buf = append(buf, hexDigits[(id>>shift)&0xF])
		}
	} else {
		buf = append(buf, 't')
		id := f.Identifier & 0x7FF
		buf = append(buf, hexDigits[(id>>8)&0xF], hexDigits[(id>>4)&0xF], hexDigits[id&0xF])
	}
	data := f.Payload()
	buf = append(buf, hexDigits[len(data)])
	for _, b := range data {
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0xF])
	}
	return append(buf, '\r')
}

func decodeFrame(line []byte) (*obdcan.CANFrame, error) {
	idLen := 3
	extended := line[0] == 'T'
	if extended {
		idLen = 8
	}
	if len(line) < 1+idLen+1 {
		return nil, errors.New("frame too short")
	}
	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode identifier")
	}
	dlc, err := strconv.ParseUint(string(line[1+idLen]), 16, 8)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode data length")
	}
	if dlc > obdcan.FrameLen {
		return nil, fmt.Errorf("invalid data length: %d", dlc)
	}
	body := line[2+idLen:]
	if len(body) < int(dlc)*2 {
		return nil, fmt.Errorf("frame body too short for length %d", dlc)
	}
	data, err := hex.DecodeString(string(body[:dlc*2]))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode frame body")
	}
	return obdcan.NewFrame(uint32(id), extended, uint8(dlc), data...), nil
}

// parseVersion reads V<hh><ss>, hardware and software version in BCD
func parseVersion(line []byte) (uint16, error) {
	if len(line) != 5 {
		return 0, fmt.Errorf("invalid version reply %q", line)
	}
	b, err := hex.DecodeString(string(line[1:]))
	if err != nil {
		return 0, errors.Wrap(err, "invalid version reply")
	}
	return bcd.ToUint16(b), nil
}

var statusBits = []string{
	"CAN receive FIFO queue full",
	"CAN transmit FIFO queue full",
	"error warning (EI)",
	"data overrun (DOI)",
	"",
	"error passive (EPI)",
	"arbitration lost (ALI)",
	"bus error (BEI)",
}

// checkStatus decodes the F<xx> status flags, the lowest set bit wins
func checkStatus(line []byte) error {
	if len(line) != 3 {
		return fmt.Errorf("invalid status reply %q", line)
	}
	v, err := strconv.ParseUint(string(line[1:]), 16, 8)
	if err != nil {
		return errors.Wrap(err, "invalid status reply")
	}
	for bit, msg := range statusBits {
		if msg != "" && v&(1<<bit) != 0 {
			return errors.New(msg)
		}
	}
	return nil
}
