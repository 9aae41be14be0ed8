// Package split turns editor input into the prefix/suffix pair of a
// fill-in-the-middle prompt.
package split

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLineOutOfRange is returned when a cursor line is outside the document.
	ErrLineOutOfRange = errors.New("split: line out of range")
	// ErrAmbiguousMarker is returned when the fill marker appears more than once.
	ErrAmbiguousMarker = errors.New("split: fill marker appears more than once")
)

// Prompt is the text surrounding the gap to fill.
type Prompt struct {
	Prefix string
	Suffix string
	// File and Repo locate the document for repository-level prompt formats.
	File string
	Repo string
}

// AtCursor splits doc at the zero-based line and byte position.
// Positions past the end of the line are clamped to the line end.
func AtCursor(doc string, line, pos int) (Prompt, error) {
	lines := strings.Split(doc, "\n")
	if line < 0 || line >= len(lines) {
		return Prompt{}, fmt.Errorf("%w: %d (document has %d lines)", ErrLineOutOfRange, line, len(lines))
	}

	current := lines[line]
	pos = max(0, min(pos, len(current)))

	var prefix strings.Builder
	for _, l := range lines[:line] {
		prefix.WriteString(l)
		prefix.WriteByte('\n')
	}
	prefix.WriteString(current[:pos])

	var suffix strings.Builder
	suffix.WriteString(current[pos:])
	for _, l := range lines[line+1:] {
		suffix.WriteByte('\n')
		suffix.WriteString(l)
	}

	return Prompt{Prefix: prefix.String(), Suffix: suffix.String()}, nil
}

// AtMarker splits text around a single occurrence of marker.
// Text without the marker becomes the prefix with an empty suffix.
func AtMarker(text, marker string) (Prompt, error) {
	if marker == "" {
		return Prompt{Prefix: text}, nil
	}
	switch strings.Count(text, marker) {
	case 0:
		return Prompt{Prefix: text}, nil
	case 1:
		prefix, suffix, _ := strings.Cut(text, marker)
		return Prompt{Prefix: prefix, Suffix: suffix}, nil
	default:
		return Prompt{}, ErrAmbiguousMarker
	}
}
