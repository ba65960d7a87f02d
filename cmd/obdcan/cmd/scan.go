package cmd

import (
	"fmt"
	"strings"

	"github.com/roffe/obdcan"
	"github.com/roffe/obdcan/pkg/bar"
	"github.com/roffe/obdcan/pkg/collector"
	"github.com/roffe/obdcan/pkg/obd"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover the supported mode 01 PIDs and read each of them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := &obdcan.Transcript{}
		s, err := newStack(ctx, out)
		if err != nil {
			return err
		}
		defer s.Close()
		go logEvents(ctx, s.driver)

		c := collector.New()
		run := func(line string) []string {
			out.Reset()
			c.Reset()
			c.PutString(line)
			s.dispatcher.Dispatch(c)
			return out.Lines()
		}
		run("ATH0")
		run("ATS1")

		var supported []byte
		for base := 0; base < 0x100; base += 0x20 {
			bitmap := firstPositive(0x01, byte(base), run(fmt.Sprintf("01%02X", base)))
			if len(bitmap) < 4 {
				if base == 0 {
					return fmt.Errorf("no answer to 01 00: %s", strings.Join(out.Lines(), " "))
				}
				break
			}
			pids := obd.SupportedPIDs(byte(base), bitmap)
			more := len(pids) > 0 && int(pids[len(pids)-1]) == base+0x20
			for _, pid := range pids {
				if int(pid)%0x20 != 0 {
					supported = append(supported, pid)
				}
			}
			if !more {
				break
			}
		}

		results := make([]string, 0, len(supported))
		pb := bar.New(len(supported), "reading PIDs")
		for _, pid := range supported {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lines := run(fmt.Sprintf("01%02X", pid))
			for i, l := range lines {
				if _, code, ok := obd.NegativeResponse(l); ok {
					lines[i] = l + " (" + obd.NRCText(code) + ")"
				}
			}
			results = append(results, fmt.Sprintf("%02X %-36s %s", pid, obd.PIDName(pid), strings.Join(lines, " | ")))
			pb.Add(1)
		}
		pb.Finish()

		for _, r := range results {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

// firstPositive returns the data of the first line answering mode/pid
func firstPositive(mode, pid byte, lines []string) []byte {
	for _, l := range lines {
		if data := obd.PositiveResponse(mode, pid, l); data != nil {
			return data
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
