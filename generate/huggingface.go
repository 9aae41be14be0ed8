package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Paranoid-AF/infill/split"
)

// Huggingface calls the Hugging Face text-generation inference API with a
// CodeLlama infilling prompt.
type Huggingface struct {
	s Settings
}

func (h *Huggingface) Name() string  { return "huggingface" }
func (h *Huggingface) Model() string { return h.s.Model }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Stream     bool         `json:"stream,omitempty"`
}

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error,omitempty"`
}

type hfStreamEvent struct {
	Token struct {
		Text    string `json:"text"`
		Special bool   `json:"special"`
	} `json:"token"`
	Error string `json:"error,omitempty"`
}

func (h *Huggingface) endpoint() string {
	return h.s.BaseURL + "/models/" + h.s.Model
}

func (h *Huggingface) request(p split.Prompt) hfRequest {
	req := hfRequest{
		Inputs: FormatCodeLlama(p),
		Parameters: hfParameters{
			MaxNewTokens: h.s.MaxNewTokens,
		},
		Stream: h.s.Stream,
	}
	// The inference API rejects a zero temperature.
	if h.s.Temperature > 0 {
		t := h.s.Temperature
		req.Parameters.Temperature = &t
	}
	return req
}

// Infill sends the formatted prompt and returns the generated text.
func (h *Huggingface) Infill(ctx context.Context, p split.Prompt) (string, error) {
	resp, err := postJSON(ctx, h.s, h.endpoint(), h.request(p))
	if err != nil {
		return "", err
	}

	if h.s.Stream {
		defer resp.Body.Close()
		if err := checkStatus(h.Name(), resp); err != nil {
			return "", err
		}
		var sb strings.Builder
		err := readEvents(ctx, resp.Body, func(data []byte) error {
			var ev hfStreamEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("failed to parse stream event: %w", err)
			}
			if ev.Error != "" {
				return fmt.Errorf("%s: API error: %s", h.Name(), ev.Error)
			}
			sb.WriteString(ev.Token.Text)
			return nil
		})
		return sb.String(), err
	}

	body, err := readBody(h.Name(), resp)
	if err != nil {
		return "", err
	}
	return parseHFResponse(body)
}

// parseHFResponse accepts both the list form returned by the hosted API and
// the single object returned by a text-generation-inference server.
func parseHFResponse(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	var results []hfGenerated
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
		}
	} else {
		var single hfGenerated
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
		}
		if single.Error != "" {
			return "", fmt.Errorf("huggingface: API error: %s", single.Error)
		}
		results = append(results, single)
	}
	if len(results) == 0 {
		return "", ErrEmptyResponse
	}
	return results[0].GeneratedText, nil
}
