package cmd

import (
	"github.com/roffe/obdcan"
	"github.com/spf13/cobra"
)

var wiringCmd = &cobra.Command{
	Use:   "wiring",
	Short: "Check the CAN TX/RX loop of the driver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack(cmd.Context(), obdcan.NewWriterOutput(cmd.OutOrStdout(), "\n"))
		if err != nil {
			return err
		}
		defer s.Close()
		s.profile.WiringCheck()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(wiringCmd)
}
