package cmd

import (
	"fmt"
	"sync"

	"github.com/jroimartin/gocui"
	"github.com/roffe/obdcan/cmd/obdcan/pkg/ui"
	"github.com/roffe/obdcan/pkg/collector"
	"github.com/spf13/cobra"
)

const (
	viewFrames  = "frames"
	viewReplies = "replies"
	viewInput   = "input"
	viewHelp    = "help"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive terminal with the frame history next to the replies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		defer g.Close()
		g.Cursor = true

		s, err := newStack(ctx, &viewOutput{g: g, name: viewReplies})
		if err != nil {
			return err
		}
		defer s.Close()
		go logEvents(ctx, s.driver)

		var mu sync.Mutex
		c := collector.New()
		input := ui.NewInput(viewInput, "Command", 40, func(line string) {
			// requests block for up to P2*, keep them off the UI goroutine
			go func() {
				mu.Lock()
				defer mu.Unlock()
				c.Reset()
				c.PutString(line)
				g.Update(func(g *gocui.Gui) error {
					v, err := g.View(viewReplies)
					if err != nil {
						return err
					}
					fmt.Fprintf(v, "> %s\n", line)
					return nil
				})
				s.dispatcher.Dispatch(c)
				g.Update(refreshFrames(s))
			}()
		})

		g.SetManagerFunc(monitorLayout(input))
		if err := monitorKeybindings(g); err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
		}()

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// viewOutput appends replies to a gocui view from any goroutine
type viewOutput struct {
	g    *gocui.Gui
	name string
}

func (o *viewOutput) write(s string) {
	o.g.Update(func(g *gocui.Gui) error {
		v, err := g.View(o.name)
		if err != nil {
			return err
		}
		fmt.Fprint(v, s)
		return nil
	})
}

func (o *viewOutput) SendReply(s string) {
	o.write(s + "\n")
}

func (o *viewOutput) SendString(s string) {
	o.write(s)
}

func refreshFrames(s *stack) func(*gocui.Gui) error {
	return func(g *gocui.Gui) error {
		v, err := g.View(viewFrames)
		if err != nil {
			return err
		}
		v.Clear()
		for _, e := range s.history.Entries() {
			fmt.Fprintln(v, e.ColorString())
		}
		return nil
	}
}

func monitorLayout(input *ui.Input) func(*gocui.Gui) error {
	return func(g *gocui.Gui) error {
		maxX, maxY := g.Size()
		split := maxX * 3 / 5

		if v, err := g.SetView(viewFrames, 0, 0, split-1, maxY-1); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Autoscroll = true
			v.Title = "Frames"
		}
		if v, err := g.SetView(viewReplies, split, 0, maxX-1, maxY-10); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Autoscroll = true
			v.Wrap = true
			v.Title = "Replies"
		}
		input.Place(split, maxY-9, maxX-1-split)
		if err := input.Layout(g); err != nil {
			return err
		}
		if v, err := g.SetView(viewHelp, split, maxY-6, maxX-1, maxY-1); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Title = "Help"
			fmt.Fprintln(v, "<Enter> Send command")
			fmt.Fprintln(v, "<Up/Down> Command history")
			fmt.Fprintln(v, "<Ctrl-L> Clear replies")
			fmt.Fprintln(v, "<Ctrl-C> Quit")
		}
		if g.CurrentView() == nil {
			if _, err := g.SetCurrentView(viewInput); err != nil {
				return err
			}
		}
		return nil
	}
}

func monitorKeybindings(g *gocui.Gui) error {
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, func(*gocui.Gui, *gocui.View) error {
		return gocui.ErrQuit
	}); err != nil {
		return err
	}
	return g.SetKeybinding("", gocui.KeyCtrlL, gocui.ModNone, func(g *gocui.Gui, _ *gocui.View) error {
		v, err := g.View(viewReplies)
		if err != nil {
			return err
		}
		v.Clear()
		return nil
	})
}
