package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/collector"
	"github.com/roffe/obdcan/pkg/config"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request <command>...",
	Short: "Run AT commands and OBD requests in order",
	Long: `Each argument is one command line as a host would send it, for example

  obdcan request ATH1 0100 "01 0D"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newStack(ctx, obdcan.NewWriterOutput(cmd.OutOrStdout(), "\n"))
		if err != nil {
			return err
		}
		defer s.Close()
		go logEvents(ctx, s.driver)

		c := collector.New()
		for _, a := range args {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Reset()
			c.PutString(a)
			s.dispatcher.Dispatch(c)
		}

		if save, _ := cmd.Flags().GetString("save-profile"); save != "" {
			if err := writeFile(save, config.ProfileFrom(s.cfg).Write); err != nil {
				return errors.Wrap(err, "saving profile")
			}
		}
		if trace, _ := cmd.Flags().GetString("trace"); trace != "" {
			if err := writeFile(trace, s.history.Export); err != nil {
				return errors.Wrap(err, "writing trace")
			}
		}
		return nil
	},
}

func writeFile(filename string, write func(io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	requestCmd.Flags().StringP("trace", "t", "", "write the frame history to this file (msgpack)")
	requestCmd.Flags().String("save-profile", "", "write the adapter properties after the commands to this file (YAML), usable with --profile")
	rootCmd.AddCommand(requestCmd)
}
