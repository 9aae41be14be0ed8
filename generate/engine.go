// Package generate orchestrates fill-in-the-middle inference: prompt
// formatting, the provider call, and trimming of the end-of-text marker.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	infill "github.com/Paranoid-AF/infill"
	"github.com/Paranoid-AF/infill/split"
)

// Engine resolves providers from config and runs infill requests.
type Engine struct {
	config *infill.Config
	client *http.Client
	cache  *ResultCache // nil disables caching
}

// NewEngine creates an engine from the on-disk config, falling back to defaults.
func NewEngine() *Engine {
	cfg, err := infill.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = infill.DefaultConfig()
	}
	for _, w := range infill.ValidateConfig(cfg) {
		slog.Debug("config warning", "warning", w)
	}
	return NewEngineWithConfig(cfg)
}

// NewEngineWithConfig creates an engine for cfg. A positive
// generation.cache_ttl_minutes enables the result cache.
func NewEngineWithConfig(cfg *infill.Config) *Engine {
	e := &Engine{
		config: cfg,
		client: NewHTTPClient(cfg.Generation.TimeoutSeconds),
	}
	if ttl := cfg.Generation.CacheTTLMinutes; ttl > 0 {
		e.cache = NewResultCache(time.Duration(ttl) * time.Minute)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() *infill.Config {
	return e.config
}

// Close releases resources held by the engine.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Provider resolves a provider by name and model. Empty values select the
// configured defaults. name may also be "provider/model", as in
// "codestral/codestral-latest", when model is empty.
func (e *Engine) Provider(name, model string) (Provider, error) {
	if name == "" {
		name = infill.ResolveProvider(e.config)
	}
	if model == "" {
		name, model = splitProviderModel(name)
	}
	return NewProvider(e.config, name, model, e.client)
}

// splitProviderModel splits "provider/model" when the part before the first
// slash names a known provider. Model names may contain slashes themselves.
func splitProviderModel(s string) (provider, model string) {
	p, m, ok := strings.Cut(s, "/")
	if !ok || !slices.Contains(ProviderNames, p) {
		return s, ""
	}
	return p, m
}

// Infill formats and sends p through prov and trims the result.
// Failures from the provider are returned unchanged; nothing is retried.
func (e *Engine) Infill(ctx context.Context, prov Provider, p split.Prompt) (CompletionResult, error) {
	id := uuid.NewString()
	log := slog.With("trace_id", id, "provider", prov.Name(), "model", prov.Model())
	log.Debug("infill request", "prefix_len", len(p.Prefix), "suffix_len", len(p.Suffix))

	call := func(ctx context.Context) (string, error) {
		return prov.Infill(ctx, p)
	}

	var (
		raw    string
		cached bool
		err    error
	)
	start := time.Now()
	if e.cache != nil {
		gen := e.config.Generation
		key := cacheKey(prov.Name(), prov.Model(), gen.MaxNewTokens, gen.Temperature, p.Prefix, p.Suffix, p.File, p.Repo)
		raw, cached, err = e.cache.Do(ctx, key, call)
	} else {
		raw, err = call(ctx)
	}
	if err != nil {
		log.Debug("infill failed", "error", err)
		return CompletionResult{}, err
	}

	res := CompletionResult{
		ID:      id,
		Raw:     raw,
		Trimmed: Trim(raw, e.config.Generation.EOTMarker, e.config.Generation.Trim),
		Cached:  cached,
	}
	log.Debug("infill response", "raw", res.Raw, "cached", cached, "elapsed", time.Since(start))
	return res, nil
}

// PromptFor builds the prompt described by req.
func (e *Engine) PromptFor(req *infill.Request) (split.Prompt, error) {
	var (
		p   split.Prompt
		err error
	)
	switch {
	case req.Text != "" && req.Cursor != nil:
		p, err = split.AtCursor(req.Text, req.Cursor.Line, req.Cursor.Pos)
	case req.Text != "":
		p, err = split.AtMarker(req.Text, e.config.Generation.FillMarker)
	default:
		p = split.Prompt{Prefix: req.Prefix, Suffix: req.Suffix}
	}
	if err != nil {
		return split.Prompt{}, err
	}
	p.File = req.File
	p.Repo = req.Repo
	return p, nil
}

// Complete processes a daemon request and returns a response.
func (e *Engine) Complete(ctx context.Context, req *infill.Request) *infill.Response {
	prov, err := e.Provider(req.Provider, req.Model)
	if err != nil {
		var credErr *CredentialError
		if errors.As(err, &credErr) {
			return errorResponse("not_configured", err)
		}
		return errorResponse("invalid_request", err)
	}

	p, err := e.PromptFor(req)
	if err != nil {
		return errorResponse("invalid_request", err)
	}

	res, err := e.Infill(ctx, prov, p)
	if err != nil {
		slog.Error("generation error", "provider", prov.Name(), "error", err)
		return errorResponse("api_error", err)
	}

	return &infill.Response{
		TraceID: res.ID,
		Infill:  res.Trimmed,
		Output:  res.Assemble(p),
		Cached:  res.Cached,
	}
}

func errorResponse(code string, err error) *infill.Response {
	return &infill.Response{
		Error: &infill.Error{Code: code, Message: err.Error()},
	}
}
