package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/roffe/obdcan/pkg/history"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Print a frame history written by 'request --trace'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "opening trace")
		}
		defer f.Close()
		records, err := history.Import(f)
		if err != nil {
			return err
		}
		colored, _ := cmd.Flags().GetBool("color")
		for _, r := range records {
			frame := r.Frame()
			if colored {
				fmt.Fprintf(cmd.OutOrStdout(), "%04d %s\n", r.Num, frame.ColorString())
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%04d %s\n", r.Num, frame.String())
		}
		return nil
	},
}

func init() {
	traceCmd.Flags().BoolP("color", "c", false, "colored output")
	rootCmd.AddCommand(traceCmd)
}
