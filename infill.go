// Package infill defines the request/response types for infill IPC and the
// shared configuration. Messages are JSON-encoded and sent over a Unix domain
// socket, one per line.
package infill

// Cursor is a zero-based position inside a document.
type Cursor struct {
	Line int `json:"line"`
	// Pos is a byte offset within the line. Values past the end of the line
	// are clamped.
	Pos int `json:"pos"`
}

// Request is sent from an editor client to the daemon.
type Request struct {
	// RequestID is a per-session incrementing identifier assigned by the client.
	// The daemon echoes it back in the response for ordering.
	RequestID int `json:"request_id"`
	// SessionID identifies the editor session. A new request for a session
	// cancels the session's in-flight request.
	SessionID string `json:"session_id,omitempty"`
	// Provider selects the inference provider (e.g. "huggingface"), or a
	// provider and model as "codestral/codestral-latest". Empty means the
	// configured default.
	Provider string `json:"provider,omitempty"`
	// Model overrides the provider's configured model.
	Model string `json:"model,omitempty"`

	// Prefix and Suffix surround the gap to fill. They are used when
	// Text is empty.
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`

	// Text is a whole document. It is split at Cursor when set, otherwise at
	// the configured fill marker.
	Text   string  `json:"text,omitempty"`
	Cursor *Cursor `json:"cursor,omitempty"`

	// File and Repo are optional paths used by repository-level prompt formats.
	File string `json:"file,omitempty"`
	Repo string `json:"repo,omitempty"`
}

// Response is sent from the daemon back to the client.
type Response struct {
	// RequestID is echoed from the request.
	RequestID int `json:"request_id"`
	// TraceID identifies the inference call in the daemon's logs.
	TraceID string `json:"trace_id,omitempty"`
	// Infill is the trimmed generated text.
	Infill string `json:"infill"`
	// Output is prefix + infill + suffix.
	Output string `json:"output"`
	// Cached is true when the result was served from the result cache.
	Cached bool `json:"cached,omitempty"`
	// Error is set when the daemon cannot fulfill the request.
	Error *Error `json:"error,omitempty"`
}

// Error describes a daemon-side error returned to the client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "not_configured", "api_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// CancelRequest asks the daemon to cancel a session's in-flight request.
type CancelRequest struct {
	// Type is always "cancel".
	Type string `json:"type"`
	// SessionID is the session whose request should be cancelled.
	SessionID string `json:"session_id"`
}

// CancelResponse reports whether an in-flight request was found.
type CancelResponse struct {
	OK        bool   `json:"ok"`
	Cancelled bool   `json:"cancelled"`
	Error     *Error `json:"error,omitempty"`
}

// ConfigRequest is sent from the client for configuration operations.
type ConfigRequest struct {
	// Action is the config operation: "get", "reload", "defaults", or "validate".
	Action string `json:"action"`
}

// ConfigResponse is sent from the daemon in response to a ConfigRequest.
type ConfigResponse struct {
	// Config is the current configuration (for "get", "reload", and "defaults" actions).
	Config *Config `json:"config,omitempty"`
	// Warnings contains configuration warnings (for "validate" action).
	Warnings []string `json:"warnings,omitempty"`
	// Error is set when the operation fails.
	Error *Error `json:"error,omitempty"`
}
