// Package ui holds the gocui widgets of the monitor.
package ui

import (
	"strings"

	"github.com/jroimartin/gocui"
)

// Input is a single line editor, Enter hands the line to OnSubmit and the arrow
// keys walk through earlier lines.
type Input struct {
	Name      string
	Title     string
	X, Y      int
	W         int
	MaxLength int
	OnSubmit  func(line string)

	history []string
	recall  int
}

func NewInput(name, title string, maxLength int, onSubmit func(string)) *Input {
	return &Input{Name: name, Title: title, MaxLength: maxLength, OnSubmit: onSubmit}
}

// Place positions the input, called from the layout function as the terminal resizes
func (i *Input) Place(x, y, w int) {
	i.X, i.Y, i.W = x, y, w
}

func (i *Input) Layout(g *gocui.Gui) error {
	v, err := g.SetView(i.Name, i.X, i.Y, i.X+i.W, i.Y+2)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = i.Title
		v.Editor = i
		v.Editable = true
	}
	return nil
}

func (i *Input) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	cx, _ := v.Cursor()
	ox, _ := v.Origin()
	limit := ox+cx+1 > i.MaxLength
	switch {
	case ch != 0 && mod == 0 && !limit:
		v.EditWrite(ch)
	case key == gocui.KeySpace && !limit:
		v.EditWrite(' ')
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	case key == gocui.KeyEnter:
		i.submit(v)
	case key == gocui.KeyArrowUp:
		i.walk(v, -1)
	case key == gocui.KeyArrowDown:
		i.walk(v, 1)
	}
}

func (i *Input) submit(v *gocui.View) {
	line := strings.TrimSpace(v.Buffer())
	i.set(v, "")
	if line == "" {
		return
	}
	i.history = append(i.history, line)
	i.recall = len(i.history)
	if i.OnSubmit != nil {
		i.OnSubmit(line)
	}
}

func (i *Input) walk(v *gocui.View, step int) {
	n := i.recall + step
	if n < 0 || n > len(i.history) {
		return
	}
	i.recall = n
	if n == len(i.history) {
		i.set(v, "")
		return
	}
	i.set(v, i.history[n])
}

func (i *Input) set(v *gocui.View, s string) {
	v.Clear()
	v.SetOrigin(0, 0)
	v.SetCursor(0, 0)
	for _, ch := range s {
		v.EditWrite(ch)
	}
}
