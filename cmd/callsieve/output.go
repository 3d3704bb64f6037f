package main

import (
	"fmt"
	"io"
	"os"

	"callsieve/internal/parser"
	jsonx "callsieve/internal/shared/json"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// palette colours human-readable output. It is a no-op unless the writer is
// a terminal.
type palette struct {
	enabled bool
}

func newPalette(w io.Writer) palette {
	f, ok := w.(*os.File)
	return palette{enabled: ok && term.IsTerminal(int(f.Fd())) && !color.NoColor}
}

func (p palette) paint(attr color.Attribute, s string) string {
	if !p.enabled {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (p palette) red(s string) string    { return p.paint(color.FgRed, s) }
func (p palette) green(s string) string  { return p.paint(color.FgGreen, s) }
func (p palette) cyan(s string) string   { return p.paint(color.FgCyan, s) }
func (p palette) yellow(s string) string { return p.paint(color.FgYellow, s) }
func (p palette) gray(s string) string   { return p.paint(color.FgHiBlack, s) }
func (p palette) bold(s string) string   { return p.paint(color.Bold, s) }

// writeJSON encodes v as one line.
func writeJSON(w io.Writer, v any) error {
	data, err := jsonx.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// writeIndentedJSON encodes v for reading.
func writeIndentedJSON(w io.Writer, v any) error {
	data, err := jsonx.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// describeItem renders one emitted call item for the text output mode.
func (p palette) describeItem(item parser.ToolCallItem) string {
	label := p.cyan(fmt.Sprintf("[call %d]", item.ToolIndex))
	if item.Name != "" {
		return fmt.Sprintf("%s %s %s", label, p.bold(item.Name), item.Parameters)
	}
	return fmt.Sprintf("%s %s", label, p.gray(item.Parameters))
}
