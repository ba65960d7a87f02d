// Package bar renders the progress of long running request sequences.
package bar

import (
	"io"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// New returns a bar on the ANSI aware stdout counting steps
func New(steps int, text string) *progressbar.ProgressBar {
	return NewWriter(ansi.NewAnsiStdout(), steps, text)
}

func NewWriter(w io.Writer, steps int, text string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		steps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[cyan]"+text+"[reset]"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]#[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: ".",
			BarStart:      "|",
			BarEnd:        "|",
		}),
	)
}
