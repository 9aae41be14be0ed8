package generate

import (
	"context"

	"github.com/Paranoid-AF/infill/split"
)

// Codestral calls Mistral's FIM endpoint, which takes prefix and suffix as
// separate fields.
type Codestral struct {
	s Settings
}

func (c *Codestral) Name() string  { return "codestral" }
func (c *Codestral) Model() string { return c.s.Model }

type codestralRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Suffix      string  `json:"suffix"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

// Infill sends prefix and suffix to /fim/completions.
func (c *Codestral) Infill(ctx context.Context, p split.Prompt) (string, error) {
	return complete(ctx, c.Name(), c.s, c.s.BaseURL+"/fim/completions", codestralRequest{
		Model:       c.s.Model,
		Prompt:      p.Prefix,
		Suffix:      p.Suffix,
		MaxTokens:   c.s.MaxNewTokens,
		Temperature: c.s.Temperature,
		Stream:      c.s.Stream,
	})
}
