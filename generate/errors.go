package generate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned for provider names with no implementation.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrEmptyResponse is returned when a provider answers without any generated text.
	ErrEmptyResponse = errors.New("no generated text in response")
)

// CredentialError reports a provider whose API key could not be resolved.
type CredentialError struct {
	Provider string
	// EnvVar is the environment variable that was consulted, if any.
	EnvVar string
}

func (e *CredentialError) Error() string {
	if e.EnvVar == "" {
		return fmt.Sprintf("%s: API key not configured", e.Provider)
	}
	return fmt.Sprintf("%s: API key not configured; set %s", e.Provider, e.EnvVar)
}

// APIError is a non-2xx answer from an inference endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	// Body is the response body, truncated to 8 KiB.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
