package main

import (
	"io"
	"strings"
)

const (
	highlightOn  = "\033[1;32m"
	highlightOff = "\033[0m"
)

// render writes prefix + infill + suffix followed by a newline. When color is
// set the infill is wrapped in ANSI bold green so it stands out on a terminal.
func render(w io.Writer, prefix, infill, suffix string, color bool) error {
	var b strings.Builder
	b.WriteString(prefix)
	if color && infill != "" {
		b.WriteString(highlightOn)
		b.WriteString(infill)
		b.WriteString(highlightOff)
	} else {
		b.WriteString(infill)
	}
	b.WriteString(suffix)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
