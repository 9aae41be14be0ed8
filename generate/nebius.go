package generate

import (
	"context"

	"github.com/Paranoid-AF/infill/split"
)

// Nebius calls an OpenAI-compatible /completions endpoint with a
// repository-level FIM prompt.
type Nebius struct {
	s Settings
}

func (n *Nebius) Name() string  { return "nebius" }
func (n *Nebius) Model() string { return n.s.Model }

type nebiusRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature"`
	Stream      bool     `json:"stream"`
	Stop        []string `json:"stop"`
}

// Infill sends the repository-level prompt, stopping at the next file separator.
func (n *Nebius) Infill(ctx context.Context, p split.Prompt) (string, error) {
	return complete(ctx, n.Name(), n.s, n.s.BaseURL+"/completions", nebiusRequest{
		Model:       n.s.Model,
		Prompt:      FormatRepo(p),
		MaxTokens:   n.s.MaxNewTokens,
		Temperature: n.s.Temperature,
		Stream:      n.s.Stream,
		Stop:        []string{TokenFileSep},
	})
}
