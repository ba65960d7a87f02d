package cmd

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/roffe/obdcan/pkg/host"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

const (
	flagHostPort     = "host-port"
	flagHostBaudrate = "host-baudrate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the adapter to a host over a serial port, or stdio with '-'",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hostPort, _ := cmd.Flags().GetString(flagHostPort)
		hostBaud, _ := cmd.Flags().GetInt(flagHostBaudrate)

		rw, err := openHost(hostPort, hostBaud)
		if err != nil {
			return err
		}
		defer rw.Close()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		link := host.New(rw, cfg)
		s, err := newStackWithConfig(cmd.Context(), cfg, link)
		if err != nil {
			return err
		}
		defer s.Close()

		log.Printf("serving %s on %s", s.driver.Name(), hostPort)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			return logEvents(ctx, s.driver)
		})
		g.Go(func() error {
			return link.Run(ctx, s.dispatcher)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String(flagHostPort, "-", "host side serial port, - = stdin/stdout")
	serveCmd.Flags().Int(flagHostBaudrate, 38400, "host side baudrate")
	rootCmd.AddCommand(serveCmd)
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

func openHost(port string, baudrate int) (io.ReadWriteCloser, error) {
	if port == "-" {
		return stdio{os.Stdin, os.Stdout}, nil
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening host port %q", port)
	}
	// Run checks for cancellation between reads
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		p.Close()
		return nil, errors.Wrap(err, "setting host port read timeout")
	}
	return p, nil
}
