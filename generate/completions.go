package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// completionsResponse covers both the /completions and the FIM endpoints of
// OpenAI-compatible APIs, streamed or not.
type completionsResponse struct {
	Choices []completionsChoice `json:"choices"`
	Error   *apiError           `json:"error,omitempty"`
}

type completionsChoice struct {
	Text    string `json:"text"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c completionsChoice) content() string {
	switch {
	case c.Message.Content != "":
		return c.Message.Content
	case c.Delta.Content != "":
		return c.Delta.Content
	default:
		return c.Text
	}
}

// complete posts body to url and extracts the first choice, accumulating
// deltas when streaming.
func complete(ctx context.Context, provider string, s Settings, url string, body any) (string, error) {
	resp, err := postJSON(ctx, s, url, body)
	if err != nil {
		return "", err
	}

	if s.Stream {
		defer resp.Body.Close()
		if err := checkStatus(provider, resp); err != nil {
			return "", err
		}
		var sb strings.Builder
		err := readEvents(ctx, resp.Body, func(data []byte) error {
			var chunk completionsResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				return fmt.Errorf("failed to parse stream event: %w", err)
			}
			if chunk.Error != nil {
				return fmt.Errorf("%s: API error: %s", provider, chunk.Error.Message)
			}
			if len(chunk.Choices) > 0 {
				sb.WriteString(chunk.Choices[0].content())
			}
			return nil
		})
		return sb.String(), err
	}

	data, err := readBody(provider, resp)
	if err != nil {
		return "", err
	}

	var result completionsResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(data))
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s: API error: %s", provider, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].content(), nil
}
