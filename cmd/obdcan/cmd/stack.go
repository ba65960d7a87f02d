package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/command"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/roffe/obdcan/pkg/history"
	"github.com/roffe/obdcan/pkg/obd"
	"github.com/roffe/obdcan/pkg/protocol"
	"github.com/spf13/viper"
	"go.bug.st/serial/enumerator"

	// Init drivers
	_ "github.com/roffe/obdcan/adapter"
)

// stack is a CAN driver with the protocol core on top of it
type stack struct {
	driver     obdcan.Driver
	cfg        *config.Store
	history    *history.Log
	profile    *obd.Profile
	dispatcher *command.Dispatcher
}

func (s *stack) Close() {
	if err := s.driver.Close(); err != nil {
		log.Printf("failed to close driver: %v", err)
	}
}

func protocolLogger() obdcan.Logger {
	if !viper.GetBool(flagVerbose) {
		return obdcan.NopLogger
	}
	return obdcan.DefaultLogger(os.Stderr)
}

// loadConfig returns the power-on properties with the --profile file applied
func loadConfig() (*config.Store, error) {
	cfg := config.New()
	filename := viper.GetString(flagProfile)
	if filename == "" {
		return cfg, nil
	}
	p, err := config.LoadProfile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "loading profile %q", filename)
	}
	if err := p.Apply(cfg); err != nil {
		return nil, errors.Wrapf(err, "applying profile %q", filename)
	}
	return cfg, nil
}

// newStack opens the configured driver and wires the adapter to out
func newStack(ctx context.Context, out obdcan.Output) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newStackWithConfig(ctx, cfg, out)
}

func newStackWithConfig(ctx context.Context, cfg *config.Store, out obdcan.Output) (*stack, error) {
	drv, err := openDriver(ctx)
	if err != nil {
		return nil, err
	}
	hist := history.New(history.DefaultCapacity)
	profile := obd.New(protocol.NewRegistry(&protocol.Env{
		Config:  cfg,
		Driver:  drv,
		History: hist,
		Output:  out,
		Logger:  protocolLogger(),
	}))
	if r := profile.SetProtocol(cfg.Int(config.ProtocolID), true); r != obdcan.ReplyOK {
		drv.Close()
		return nil, fmt.Errorf("profile selects unsupported protocol %X", cfg.Int(config.ProtocolID))
	}
	return &stack{
		driver:     drv,
		cfg:        cfg,
		history:    hist,
		profile:    profile,
		dispatcher: command.New(cfg, profile, out),
	}, nil
}

func openDriver(ctx context.Context) (obdcan.Driver, error) {
	name := viper.GetString(flagAdapter)
	info, ok := obdcan.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown adapter %q, available: %v", name, obdcan.ListDriverNames())
	}
	port := viper.GetString(flagPort)
	if info.RequiresSerialPort && port == "*" {
		var err error
		if port, err = selectPort(); err != nil {
			return nil, err
		}
	}
	drv, err := obdcan.NewDriver(info.Name, &obdcan.DriverConfig{
		Debug:        viper.GetBool(flagDebug),
		Port:         port,
		PortBaudrate: viper.GetInt(flagBaudrate),
		CANRate:      viper.GetFloat64(flagCANRate),
	})
	if err != nil {
		return nil, err
	}
	err = retry.Do(func() error {
		return drv.Open(ctx)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.RetryIf(obdcan.IsRecoverable),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("retry #%d: %v", n+1, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return drv, nil
}

// logEvents drains driver events until the driver reports an error or closes
func logEvents(ctx context.Context, drv obdcan.Driver) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-drv.Event():
			log.Println(evt.String())
		case err := <-drv.Err():
			if err != nil {
				log.Printf("driver error: %v", err)
			}
			return err
		}
	}
}

func selectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", errors.Wrap(err, "listing serial ports")
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}
	items := make([]string, len(ports))
	for i, p := range ports {
		items[i] = p.Name
		if p.IsUSB {
			items[i] = fmt.Sprintf("%s (USB %s:%s %s)", p.Name, p.VID, p.PID, p.Product)
		}
	}
	prompt := promptui.Select{
		Label: "Serial port",
		Items: items,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", errors.Wrap(err, "port selection")
	}
	return ports[i].Name, nil
}
