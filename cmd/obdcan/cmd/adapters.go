package cmd

import (
	"fmt"

	"github.com/roffe/obdcan"
	"github.com/spf13/cobra"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List available CAN drivers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, d := range obdcan.ListDrivers() {
			fmt.Fprintln(cmd.OutOrStdout(), d.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
