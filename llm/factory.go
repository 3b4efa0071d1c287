package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvAssistantMode is the environment variable name for mode selection.
	EnvAssistantMode = "ASSISTANT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewCompletionClient creates a completion client based on the
// ASSISTANT_MODE environment variable. If ASSISTANT_MODE=MOCK, returns a
// MockClient; otherwise returns a real Client.
func NewCompletionClient(baseURL, apiKey string, timeout time.Duration) CompletionClient {
	mode := os.Getenv(EnvAssistantMode)

	if mode == ModeMock {
		log.Println("ASSISTANT_MODE=MOCK detected, using mock completion client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
