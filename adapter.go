package obdcan

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Driver is the CAN transport the protocol core talks to. It moves single frames,
// nothing more. Segmentation and timing live above it.
type Driver interface {
	Name() string
	Open(context.Context) error
	Close() error
	Send(*CANFrame) error
	// IsReady reports if a frame that passes the filter is waiting to be read
	IsReady() bool
	// Read returns the next accepted frame, nil if none is waiting
	Read() *CANFrame
	SetFilterAndMask(filter, mask uint32, extended bool)
	// Bit-bang access to the CAN TX/RX pins, used by the wiring check
	SetBitBang(enabled bool)
	SetBit(v int)
	GetBit() int
	Err() <-chan error
	Event() <-chan Event
}

type DriverInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*DriverConfig) (Driver, error)
}

func (d *DriverInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v ", d.Name, d.Description, d.RequiresSerialPort)
}

type DriverConfig struct {
	Debug        bool
	Port         string
	PortBaudrate int
	CANRate      float64
	Clock        Clock
	OnMessage    func(string)
}

var driverMap = make(map[string]*DriverInfo)

func NewDriver(driverName string, cfg *DriverConfig) (Driver, error) {
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	for name, driver := range driverMap {
		if strings.EqualFold(name, driverName) {
			return driver.New(cfg)
		}
	}
	return nil, fmt.Errorf("unknown driver %q", driverName)
}

func RegisterDriver(driver *DriverInfo) error {
	if _, found := driverMap[driver.Name]; !found {
		driverMap[driver.Name] = driver
		return nil
	}
	return fmt.Errorf("driver %s already registered", driver.Name)
}

func ListDriverNames() []string {
	var out []string
	for name := range driverMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListDrivers() []DriverInfo {
	var out []DriverInfo
	for _, name := range ListDriverNames() {
		out = append(out, *driverMap[name])
	}
	return out
}

// Lookup returns the registration of a driver
func Lookup(driverName string) (*DriverInfo, bool) {
	for name, driver := range driverMap {
		if strings.EqualFold(name, driverName) {
			return driver, true
		}
	}
	return nil, false
}
