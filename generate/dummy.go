package generate

import (
	"context"

	"github.com/Paranoid-AF/infill/split"
)

// DummyCompletion is the raw text returned by the dummy provider.
const DummyCompletion = "pass " + TokenEOT

// Dummy answers every prompt locally without network access.
type Dummy struct {
	model string
}

func (d *Dummy) Name() string  { return "dummy" }
func (d *Dummy) Model() string { return d.model }

func (d *Dummy) Infill(ctx context.Context, _ split.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return DummyCompletion, nil
}
