// Package domain defines the core domain models for the assistant gateway.
package domain

import "time"

// CompletionResult is the outcome of a successful gateway completion.
// Text is never empty; the gateway substitutes a fixed clarification
// sentence when the provider returns nothing usable.
type CompletionResult struct {
	Text     string    `json:"response"`
	IssuedAt time.Time `json:"timestamp"`
	Caller   string    `json:"user"`
}

// CompletionOutcome classifies how a gateway call settled.
type CompletionOutcome string

const (
	OutcomeOK              CompletionOutcome = "ok"
	OutcomeUnauthenticated CompletionOutcome = "unauthenticated"
	OutcomeInvalidInput    CompletionOutcome = "invalid_input"
	OutcomeMisconfigured   CompletionOutcome = "misconfigured"
	OutcomeOverloaded      CompletionOutcome = "overloaded"
	OutcomeTimeout         CompletionOutcome = "timeout"
	OutcomeUpstream        CompletionOutcome = "upstream"
)

// CompletionRecord is one audit entry per settled gateway call.
// Prompt and response content are deliberately not stored, only shape,
// outcome and usage.
type CompletionRecord struct {
	RequestID        string            `json:"request_id"`
	Caller           string            `json:"caller"`
	PromptChars      int               `json:"prompt_chars"`
	Model            string            `json:"model"`
	Outcome          CompletionOutcome `json:"outcome"`
	Detail           string            `json:"detail,omitempty"`
	LatencyMs        int64             `json:"latency_ms"`
	PromptTokens     int               `json:"prompt_tokens,omitempty"`
	CompletionTokens int               `json:"completion_tokens,omitempty"`
	TotalTokens      int               `json:"total_tokens,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
