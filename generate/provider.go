package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	infill "github.com/Paranoid-AF/infill"
	"github.com/Paranoid-AF/infill/split"
)

// Provider generates the text that belongs between a prompt's prefix and suffix.
type Provider interface {
	Name() string
	Model() string
	// Infill returns the provider's raw output, end-of-text marker included.
	Infill(ctx context.Context, p split.Prompt) (string, error)
}

// Settings are the per-request parameters shared by the HTTP providers.
type Settings struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxNewTokens int
	Temperature  float64
	Stream       bool
	Client       *http.Client
}

// ProviderNames lists the providers NewProvider knows about.
var ProviderNames = []string{"huggingface", "codestral", "nebius", "dummy"}

// NewHTTPClient returns the client used for inference calls.
// A zero timeout means requests are bounded only by their context.
func NewHTTPClient(timeoutSeconds int) *http.Client {
	return &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
}

// NewProvider builds the named provider from cfg. An empty model selects the
// configured one. The credential is resolved here, so a missing key fails
// before any request is sent.
func NewProvider(cfg *infill.Config, name, model string, client *http.Client) (Provider, error) {
	if cfg == nil {
		cfg = infill.DefaultConfig()
	}
	if model == "" {
		model = infill.ResolveModel(cfg, name)
	}
	if client == nil {
		client = NewHTTPClient(cfg.Generation.TimeoutSeconds)
	}

	if name == "dummy" {
		return &Dummy{model: model}, nil
	}

	var build func(Settings) Provider
	switch name {
	case "huggingface":
		build = func(s Settings) Provider { return &Huggingface{s: s} }
	case "codestral":
		build = func(s Settings) Provider { return &Codestral{s: s} }
	case "nebius":
		build = func(s Settings) Provider { return &Nebius{s: s} }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	key := infill.ResolveAPIKey(cfg, name)
	if key == "" {
		return nil, &CredentialError{Provider: name, EnvVar: cfg.Providers[name].APIKeyEnv}
	}

	return build(Settings{
		BaseURL:      strings.TrimRight(cfg.Providers[name].BaseURL, "/"),
		APIKey:       key,
		Model:        model,
		MaxNewTokens: cfg.Generation.MaxNewTokens,
		Temperature:  cfg.Generation.Temperature,
		Stream:       cfg.Generation.Stream,
		Client:       client,
	}), nil
}

// postJSON sends body as a JSON POST with bearer authentication.
func postJSON(ctx context.Context, s Settings, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// checkStatus turns a non-2xx response into an *APIError. The body is
// consumed only on error.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(b)}
}

// readBody checks the status and returns the full response body.
func readBody(provider string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if err := checkStatus(provider, resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}
