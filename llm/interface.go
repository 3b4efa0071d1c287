package llm

import "context"

// CompletionClient defines the interface for completion provider operations.
type CompletionClient interface {
	// CreateChatCompletion sends a chat completion request.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Ensure Client implements CompletionClient interface.
var _ CompletionClient = (*Client)(nil)
