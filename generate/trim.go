package generate

import (
	"strings"

	infill "github.com/Paranoid-AF/infill"
	"github.com/Paranoid-AF/infill/split"
)

// CompletionResult is the outcome of one infill request.
type CompletionResult struct {
	// ID identifies this call in the engine's logs.
	ID string
	// Raw is the text returned by the provider.
	Raw string
	// Trimmed is Raw with the trailing end-of-text marker removed.
	Trimmed string
	// Cached is true when Raw came from the result cache.
	Cached bool
}

// Assemble returns prefix + trimmed infill + suffix.
func (r CompletionResult) Assemble(p split.Prompt) string {
	return p.Prefix + r.Trimmed + p.Suffix
}

// Trim removes the end-of-text marker from the end of raw.
//
// In infill.TrimChars mode every trailing character contained in marker is
// stripped, so "return TOTE <EOT>" loses "TOTE" as well. Any other mode
// removes only whole occurrences of marker, or of marker without its
// surrounding whitespace, repeating until none remain.
func Trim(raw, marker, mode string) string {
	if mode == infill.TrimChars {
		return strings.TrimRight(raw, marker)
	}
	token := strings.TrimSpace(marker)
	if token == "" {
		return raw
	}
	for {
		switch {
		case strings.HasSuffix(raw, marker):
			raw = raw[:len(raw)-len(marker)]
		case strings.HasSuffix(raw, token):
			raw = raw[:len(raw)-len(token)]
		default:
			return raw
		}
	}
}
